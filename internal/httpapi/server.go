// Package httpapi is the browser-facing HTTP surface of the studio.
package httpapi

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"regstudio/internal/metrics"
	"regstudio/internal/notes"
	"regstudio/internal/render"
	"regstudio/internal/router"
	"regstudio/internal/settings"
)

const (
	WorkspaceHeader  = "X-Workspace-ID"
	DefaultWorkspace = "default"
	ctxWorkspace     = "workspace"
)

var workspacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Generator interface {
	GenerateText(ctx context.Context, prompt, overrideKey string, cfg router.AIConfig) (string, error)
}

type Store interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Router      Generator
	Notes       *notes.Service
	Keys        *settings.KeyVault
	Activity    *settings.Activity
	Renderer    *render.Renderer
	Store       Store
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	Mode        string
	HealthPath  string
	MetricsPath string
}

type Server struct {
	engine   *gin.Engine
	router   Generator
	notes    *notes.Service
	keys     *settings.KeyVault
	activity *settings.Activity
	renderer *render.Renderer
	store    Store
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func New(cfg Config) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.New()
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		engine:   gin.New(),
		router:   cfg.Router,
		notes:    cfg.Notes,
		keys:     cfg.Keys,
		activity: cfg.Activity,
		renderer: cfg.Renderer,
		store:    cfg.Store,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.GET(cfg.HealthPath, s.health)
	s.engine.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	s.register(s.engine.Group("/api/v1", s.workspace()))
	return s
}

func (s *Server) register(api *gin.RouterGroup) {
	api.GET("/models", s.listModels)
	api.POST("/generate", s.generate)

	api.GET("/keys", s.listKeys)
	api.PUT("/keys/:provider", s.putKey)
	api.DELETE("/keys/:provider", s.deleteKey)

	api.GET("/features", s.listFeatures)
	api.PUT("/features/:feature", s.updateFeature)

	api.POST("/notes/highlight", s.highlight)
	api.POST("/notes/:feature", s.runFeature)
	api.POST("/render", s.render)

	api.GET("/logs", s.listLogs)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) health(c *gin.Context) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			c.String(http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

func workspaceOf(c *gin.Context) string {
	return c.GetString(ctxWorkspace)
}

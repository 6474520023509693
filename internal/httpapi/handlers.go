package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"regstudio/internal/notes"
	"regstudio/internal/providers"
	"regstudio/internal/router"
)

type generateRequest struct {
	Prompt            string   `json:"prompt"`
	Provider          string   `json:"provider" binding:"omitempty,oneof=gemini openai"`
	Model             string   `json:"model"`
	MaxTokens         int      `json:"maxTokens" binding:"gte=0"`
	Temperature       *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	SystemInstruction string   `json:"systemInstruction"`
	ResponseMimeType  string   `json:"responseMimeType" binding:"omitempty,oneof=text/plain application/json"`
	APIKey            string   `json:"apiKey"`
}

func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := providers.ParseKind(req.Provider)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	key := req.APIKey
	if key == "" && s.keys != nil {
		if key, err = s.keys.ProviderKey(ctx, workspaceOf(c), kind); err != nil {
			s.fail(c, err)
			return
		}
	}

	text, err := s.router.GenerateText(ctx, req.Prompt, key, router.AIConfig{
		Model:             req.Model,
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		SystemInstruction: req.SystemInstruction,
		ResponseMimeType:  req.ResponseMimeType,
		Provider:          kind,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.notes.Catalog().Models})
}

func (s *Server) listKeys(c *gin.Context) {
	list, err := s.keys.Status(c.Request.Context(), workspaceOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": list})
}

type putKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

func (s *Server) putKey(c *gin.Context) {
	var req putKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	st, err := s.keys.Put(c.Request.Context(), workspaceOf(c), c.Param("provider"), req.Key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) deleteKey(c *gin.Context) {
	if err := s.keys.Delete(c.Request.Context(), workspaceOf(c), c.Param("provider")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listFeatures(c *gin.Context) {
	list, err := s.notes.AllSettings(c.Request.Context(), workspaceOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": list})
}

type updateFeatureRequest struct {
	Model     *string `json:"model"`
	MaxTokens *int    `json:"maxTokens"`
	Prompt    *string `json:"prompt"`
}

func (s *Server) updateFeature(c *gin.Context) {
	var req updateFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := s.notes.UpdateSettings(c.Request.Context(), workspaceOf(c), c.Param("feature"), notes.SettingsPatch{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Prompt:    req.Prompt,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type runFeatureRequest struct {
	Text string `json:"text"`
}

func (s *Server) runFeature(c *gin.Context) {
	var req runFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	md, err := s.notes.Run(c.Request.Context(), workspaceOf(c), c.Param("feature"), req.Text)
	if err != nil {
		status, body := classify(err)
		body.Markdown = notes.ErrorMarkdown(body.Error)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("feature", c.Param("feature")).Msg("feature run failed")
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markdown": md})
}

type highlightRequest struct {
	Text     string `json:"text"`
	Keywords string `json:"keywords"`
	Color    string `json:"color"`
}

func (s *Server) highlight(c *gin.Context) {
	var req highlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	md, err := notes.Highlight(req.Text, req.Keywords, req.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markdown": md})
}

type renderRequest struct {
	Markdown string `json:"markdown"`
}

func (s *Server) render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	html, err := s.renderer.HTML(req.Markdown)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"html": html})
}

type logEntry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) listLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		limit = n
	}

	entries, err := s.activity.Recent(c.Request.Context(), workspaceOf(c), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]logEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntry{ID: e.ID, Message: e.Message, Severity: e.Severity, CreatedAt: e.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"regstudio/internal/config"
	"regstudio/internal/crypto"
	"regstudio/internal/guard"
	"regstudio/internal/httpapi"
	"regstudio/internal/metrics"
	"regstudio/internal/notes"
	"regstudio/internal/render"
	"regstudio/internal/router"
	"regstudio/internal/settings"
	"regstudio/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("db_driver", cfg.DB.Driver).
		Bool("redis", cfg.Redis.Addr != "").
		Bool("ambient_gemini_key", cfg.AI.GeminiKey != "").
		Msg("starting regstudio")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, cfg.DB.MigrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	keyring, err := crypto.NewKeyring(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize key ring")
	}
	if n, err := store.ResealProviderKeys(ctx, keyring.Reseal); err != nil {
		log.Error().Err(err).Msg("failed to reseal provider keys")
	} else if n > 0 {
		log.Info().Int("count", n).Str("key_id", cfg.Crypto.CurrentKeyID).Msg("provider keys resealed")
	}

	var processing guard.Guard = guard.NewLocalGuard()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		processing = guard.NewRedisGuard(rdb, cfg.Redis.ProcessingTTL)
	}

	catalog, err := notes.LoadCatalog(cfg.Notes.PromptsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load prompt catalog")
	}

	m := metrics.Global()
	rt := router.New(router.Config{
		GeminiKey:     cfg.AI.GeminiKey,
		GeminiBaseURL: cfg.AI.GeminiBaseURL,
		OpenAIBaseURL: cfg.AI.OpenAIBaseURL,
		HTTPClient:    &http.Client{Timeout: cfg.AI.ClientTimeout},
		Logger:        log.Logger.With().Str("component", "router").Logger(),
		Metrics:       m,
	})
	vault := settings.NewKeyVault(store, keyring, rt, log.Logger)
	activity := settings.NewActivity(store, log.Logger.With().Str("component", "activity").Logger())
	noteService := notes.NewService(notes.Config{
		Catalog:   catalog,
		Generator: rt,
		Keys:      vault,
		Settings:  store,
		Guard:     processing,
		Journal:   activity,
		Logger:    log.Logger.With().Str("component", "notes").Logger(),
		Metrics:   m,
	})

	api := httpapi.New(httpapi.Config{
		Router:      rt,
		Notes:       noteService,
		Keys:        vault,
		Activity:    activity,
		Renderer:    render.New(),
		Store:       store,
		Logger:      log.Logger.With().Str("component", "http").Logger(),
		Metrics:     m,
		Mode:        cfg.HTTP.GinMode,
		HealthPath:  cfg.HTTP.HealthPath,
		MetricsPath: cfg.HTTP.MetricsPath,
	})

	errCh := make(chan error, 1)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

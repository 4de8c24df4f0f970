package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/client"
	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/config"
	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/handler"
	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/logger"
	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/repository"
	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/service"
)

// githubPagesOrigin accepts any GitHub Pages origin in addition to the
// configured allow-list.
var githubPagesOrigin = regexp.MustCompile(`^https?://[^/]+\.github\.io$`)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting approval timeline server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional shared token cache. Redis being down is a degradation,
	// not a startup failure.
	var tokenStore client.TokenStore
	if cfg.Redis.Addr != "" {
		repo := repository.NewTokenRepository(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := repo.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, token caching is in-process only")
			_ = repo.Close()
		} else {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected, shared token cache enabled")
			tokenStore = repo
			defer repo.Close()
		}
	} else {
		log.Info().Msg("No REDIS_ADDR configured, token caching is in-process only")
	}

	// Display timezone for formatted timestamps. Feishu tenants default
	// to China Standard Time, so that is also the hard fallback when
	// the zone database is unavailable.
	loc, err := time.LoadLocation(cfg.Feishu.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Feishu.Timezone).Msg("timezone unavailable, falling back to UTC+8")
		loc = time.FixedZone("CST", 8*60*60)
	}

	// Wire the upstream client and the processing service
	tokens := client.NewTokenCache(cfg.Feishu.BaseURL, cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.Timeout, tokenStore, log)
	feishuClient := client.NewFeishuClient(cfg.Feishu.BaseURL, cfg.Feishu.Timeout, cfg.Feishu.MaxRetries, tokens, log)
	timelineService := service.NewTimelineService(loc, log)

	httpHandler := handler.NewHTTPHandler(
		feishuClient,
		timelineService,
		cfg.Service.Name,
		cfg.Service.Version,
		cfg.Service.Environment,
		log,
	)

	r := chi.NewRouter()
	r.Use(handler.Recovery(log))
	r.Use(handler.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			for _, allowed := range cfg.CORS.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return githubPagesOrigin.MatchString(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "x-system-name", "x-system-key"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r, httpHandler, cfg.SystemKeys, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

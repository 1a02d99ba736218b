package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"atelier/api/internal/app"
	"atelier/api/internal/cache"
	"atelier/api/internal/config"
	"atelier/api/internal/media"
	"atelier/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	dataStore := store.New(db)

	var viewCache *cache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		viewCache, err = cache.New(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		if err := viewCache.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("redis ping failed")
		}
		defer viewCache.Close()
		logger.Info().Msg("public view cache enabled")
	}

	var mediaStore *media.Storage
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaStore, err = media.New(ctx, media.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage connection failed")
		}
		logger.Info().Str("bucket", cfg.MinioBucket).Msg("object storage enabled")
	}

	service := app.New(cfg, dataStore, viewCache, mediaStore, logger)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("Atelier API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/api"
	"github.com/Arjunan-lab/ChattingApp/internal/api/middleware"
	"github.com/Arjunan-lab/ChattingApp/internal/auth"
	"github.com/Arjunan-lab/ChattingApp/internal/config"
	"github.com/Arjunan-lab/ChattingApp/internal/delivery"
	"github.com/Arjunan-lab/ChattingApp/internal/presence"
	"github.com/Arjunan-lab/ChattingApp/internal/realtime"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open the message and user store
	db, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store open failed")
	}
	defer db.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	// Redis backs rate limiting. Reuse the store's client when Redis is
	// also the message store.
	var redisStore *store.RedisStore
	if rs, ok := db.(*store.RedisStore); ok {
		redisStore = rs
	} else if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Presence and its mirror into the roster
	roster := presence.NewRosterSync(db, logger, 256)
	if err := roster.Reset(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to reset stored presence")
	}
	go roster.Run(ctx)
	table := presence.NewTable(roster)

	// Push transport
	jwt := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	hub := realtime.NewHub()
	router := delivery.NewRouter(hub, logger)
	wsCfg := realtime.DefaultConfig()
	wsCfg.PingPeriod = cfg.PingPeriod
	wsCfg.PongWait = cfg.PongWait
	wsCfg.WriteWait = cfg.WriteWait
	wsCfg.SendBuffer = cfg.SendBuffer
	wsCfg.AllowedOrigins = cfg.AllowedOrigins
	manager := realtime.NewManager(hub, table, jwt, router, logger, wsCfg)

	handler := api.NewRouter(api.Deps{
		Logger:    logger,
		Store:     db,
		Redis:     redisStore,
		Verifier:  jwt,
		Presence:  table,
		Hub:       hub,
		Publisher: router,
		Push:      http.HandlerFunc(manager.ServeWS),
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Create server. No write timeout: push sessions are long-lived and
	// manage their own deadlines.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	manager.Close()
	stop()

	logger.Info().Msg("server stopped")
}

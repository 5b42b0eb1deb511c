// Command api is the School Cup tournament console server.
//
// Usage:
//
//	schoolcup-api
//	API_PORT=8080 schoolcup-api

// @title School Cup API
// @version 1.0.0
// @description School tournament console: teams, players, games, live set scoring and public signups. Admin routes need the session cookie set by /auth/login.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name School Cup
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/schoolcup/internal/api"
	"github.com/albapepper/schoolcup/internal/api/handler"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/cache"
	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/db"
	"github.com/albapepper/schoolcup/internal/live"
	"github.com/albapepper/schoolcup/internal/maintenance"
	"github.com/albapepper/schoolcup/internal/store"

	_ "github.com/albapepper/schoolcup/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Schema first: the pool prepares statements against the tables.
	if cfg.AutoMigrate {
		logger.Info("Applying schema...")
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("Failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	st := store.New(pool.Pool)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Live feed: table changes from Postgres fan out to the cache and the
	// websocket hub.
	hub := live.NewHub(ctx)
	go live.Listen(ctx, cfg.DatabaseURL, live.Fanout(hub, appCache, logger), logger)

	// Maintenance tickers (registration window, request purge, stale games)
	go maintenance.Start(ctx, st, maintenance.Config{
		RegistrationInterval: cfg.RegistrationSweepInterval,
		PurgeInterval:        cfg.RequestPurgeInterval,
		StaleGameInterval:    cfg.StaleGameInterval,
	}, logger)

	// Create router
	router := api.NewRouter(handler.Deps{
		Store:    st,
		DB:       pool,
		Cache:    appCache,
		Hub:      hub,
		Live:     live.NewService(st, hub, logger),
		Sessions: auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure),
		Config:   cfg,
		Logger:   logger,
	})

	// Create HTTP server. No write timeout: websocket streams are long lived
	// and the handlers bound their own writes.
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Start server in background
	go func() {
		logger.Info("Starting School Cup API",
			"addr", addr,
			"environment", cfg.Environment,
			"static", cfg.StaticDir,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/handlers"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/middleware"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/router"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/database/postgres"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/pkg/logger"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/journal"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

// serveCmd runs the API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the realtime cache and serves it over HTTP, SSE and WebSocket.
Ctrl+C stops the server gracefully.

Examples:
  go run ./cmd/desk serve
  BACKEND_MODE=mock go run ./cmd/desk serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().
		Str("version", logger.Version).
		Str("backend", cfg.Backend.Mode).
		Msg("🚀 Starting desk API server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv, err := newInvoker(cfg)
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	cache := newCache(cfg, inv, hub)

	// Optional journal: persists every cache change to PostgreSQL
	var (
		recorder *journal.Recorder
		db       handlers.DatabaseChecker
	)
	if cfg.Journal.Enabled {
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()
		db = pool

		repo := postgres.NewJournalRepository(pool.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}

		recorder = journal.NewRecorder(repo, journal.Config{FlushInterval: cfg.Journal.FlushInterval})
		recorder.Start(ctx)
		defer recorder.Stop()

		sub := cache.Subscribe(recorder.Handle)
		defer sub.Unsubscribe()

		log.Info().Msg("✅ Journal enabled")
	}

	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("start realtime cache: %w", err)
	}
	// Teardown stops the cache through its lifecycle hook
	defer hub.Teardown()

	// Handlers
	corsConfig := middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)
	streamHandler := handlers.NewStreamHandler(cache, corsConfig.OriginAllowed)
	deskHandler := handlers.NewDeskHandler(cache, hub, inv, recorder)
	deskHandler.SetStreams(streamHandler)

	var accessLogger *zerolog.Logger
	if cfg.Logging.FileEnabled {
		al := logger.NewAccessLogger(cfg.Logging.FilePath, cfg.Logging.RotationSize, cfg.Logging.RetentionDays)
		accessLogger = &al
	}

	handler := router.NewRouter(&router.Config{
		HealthHandler:  handlers.NewHealthHandler(cache, db, logger.Version),
		DeskHandler:    deskHandler,
		TradingHandler: handlers.NewTradingHandler(cache),
		StreamHandler:  streamHandler,
		CORS:           corsConfig,
		AccessLogger:   accessLogger,
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	server.RegisterOnShutdown(streamHandler.Shutdown)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Msg("🎯 API Server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		log.Info().Msg("🛑 Shutdown signal received, stopping server...")
	case err := <-serverErr:
		return fmt.Errorf("api server: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("👋 Desk API server stopped")
	return nil
}

// wsdeck - WebSocket session manager server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/wsdeck/internal/api"
	"github.com/ashureev/wsdeck/internal/config"
	"github.com/ashureev/wsdeck/internal/middleware"
	"github.com/ashureev/wsdeck/internal/session"
	"github.com/ashureev/wsdeck/internal/store"
	"github.com/ashureev/wsdeck/internal/transport"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "journal", cfg.Journal.Enabled)

	// Optional transcript journal.
	var journal store.Journal
	var recorder session.Recorder
	var queue *store.Queue
	if cfg.Journal.Enabled {
		journal, err = store.NewSQLite(cfg.Journal.Path)
		if err != nil {
			slog.Error("Failed to initialize journal", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				slog.Error("Failed to close journal", "error", closeErr)
			}
		}()

		if err := journal.Ping(context.Background()); err != nil {
			slog.Error("Journal health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Journal connected", "path", cfg.Journal.Path)

		queue = store.NewQueue(journal, cfg.Journal.QueueSize, logger)
		recorder = queue
	}

	// Initialize services.
	dialer := transport.NewWebSocketDialer(transport.DialerConfig{
		DialTimeout: cfg.DialTimeout,
		ReadLimit:   cfg.ReadLimit,
	}, logger)

	storeOpts := []session.Option{session.WithLogger(logger)}
	if recorder != nil {
		storeOpts = append(storeOpts, session.WithRecorder(recorder))
	}
	sessions := session.NewStore(storeOpts...)
	ctrl := session.NewController(sessions, dialer, session.WithSendTimeout(cfg.SendTimeout))

	handler := api.NewHandler(sessions, ctrl, journal, cfg.ConnectWait)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	handler.RegisterRoutes(r)

	// POST /connect may hold the request for up to ConnectWait.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ConnectWait + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Wait for close events so the final disconnection entries are journaled.
	if err := ctrl.Close(shutdownCtx); err != nil {
		slog.Warn("Sessions did not close before shutdown deadline", "error", err)
	}

	if queue != nil {
		if err := queue.Close(); err != nil {
			slog.Error("Failed to drain journal queue", "error", err)
		}
	}

	slog.Info("Server stopped successfully")
}

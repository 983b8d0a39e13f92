// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/luzzle/luzzle/internal/api"
	"github.com/luzzle/luzzle/internal/sse"
	"github.com/luzzle/luzzle/internal/sync"
)

// Run starts the server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("pieces_path", cfg.Pieces.Path),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := NewStore(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	database, err := OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer database.Close()

	types, err := ResolveTypes(cfg.Pieces.Types)
	if err != nil {
		return err
	}
	engine := sync.NewEngine(database, store, types, logger)

	// Run initial sync. Asset prune deletes files and stays opt-in, so the
	// startup pass never runs it.
	if report, err := engine.Run(ctx, sync.Options{}); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync complete",
			slog.Int("inserted", report.Inserted),
			slog.Int("updated", report.Updated),
			slog.Int("failures", len(report.Failures)))
	}

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Build API service and router.
	svc := api.NewService(database, store, engine, logger)
	apiRouter := api.NewRouter(svc, api.NewAssetHandler(store), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback. Only the local backend supports
	// change notification; the WebDAV backend relies on explicit sync calls.
	if cfg.Storage.Backend == BackendFS {
		g.Go(func() error {
			err := sync.Watch(gCtx, engine, cfg.Pieces.Path, logger, func(report *sync.Report) {
				broker.PublishSync(sse.SyncUpdate{
					Inserted: report.Inserted,
					Updated:  report.Updated,
					Deleted:  report.Deleted,
					Failed:   len(report.Failures),
				})
			})
			if err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

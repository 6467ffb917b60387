// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/opdedupe/internal/api"
	"github.com/starford/opdedupe/internal/checksum"
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/mcpserver"
	"github.com/starford/opdedupe/internal/opcli"
	"github.com/starford/opdedupe/internal/planservice"
	"github.com/starford/opdedupe/internal/reconcile"
	"github.com/starford/opdedupe/internal/sse"
	"github.com/starford/opdedupe/internal/watch"
)

// setup applies opts, fills in defaults and installs the logger.
func setup(opts ...Option) (*application, *slog.Logger, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}
	if app.version == "" {
		app.version = "dev"
	}

	cfg := app.config
	logger := newLogger(app.logOutput, cfg.App)
	slog.SetDefault(logger)

	if app.provider == nil {
		app.provider = opcli.New(opcli.ExecRunner{Binary: cfg.Store.Binary, Account: cfg.Store.Account})
	}
	if app.confirmer == nil {
		app.confirmer = reconcile.NewPrompt(app.stdin, app.stdout)
	}

	logger.Debug("Configuration loaded",
		slog.String("store_binary", cfg.Store.Binary),
		slog.String("vault", cfg.Store.Vault),
		slog.Int("workers", cfg.Fetch.Workers),
		slog.String("report_path", cfg.Report.Path),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return app, logger, nil
}

func newLogger(w io.Writer, cfg ApplicationConfig) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openJournal returns nil when journaling is disabled.
func (a *application) openJournal() (*journal.DB, error) {
	if !a.config.Journal.Enabled() {
		return nil, nil
	}
	db, err := journal.Open(a.config.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return db, nil
}

// recorder converts db to a Recorder without producing a typed nil.
func recorder(db *journal.DB) journal.Recorder {
	if db == nil {
		return nil
	}
	return db
}

// Serve runs the read-only review server until a signal arrives or ctx ends.
func Serve(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	db, err := app.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc := planservice.NewService(cfg.Report.Path, db, logger)

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()
	if sum, err := checksum.File(cfg.Report.Path); err == nil {
		broker.PublishPlanUpdated(sum)
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open event streams never go idle; closing the broker ends them.
	httpServer.RegisterOnShutdown(broker.Close)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := watch.Report(gCtx, cfg.Report.Path, logger, func(sum string) {
			logger.Info("report changed", slog.String("checksum", sum))
			broker.PublishPlanUpdated(sum)
		})
		if err != nil {
			logger.Warn("report watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.HTTP.Address()),
			slog.String("report_path", cfg.Report.Path),
			slog.Bool("auth", cfg.Auth.AuthEnabled()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the review tools over stdio.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, logger, err := setup(opts...)
	if err != nil {
		return err
	}

	db, err := app.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc := planservice.NewService(app.config.Report.Path, db, logger)
	logger.Info("Starting MCP server on stdio", slog.String("report_path", app.config.Report.Path))
	return mcpserver.New(svc, app.version).ServeStdio()
}

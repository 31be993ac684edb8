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

	"github.com/starford/marksman/internal/api"
	"github.com/starford/marksman/internal/index"
	"github.com/starford/marksman/internal/markservice"
	"github.com/starford/marksman/internal/mcpserver"
	"github.com/starford/marksman/internal/project"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/sse"
	"github.com/starford/marksman/internal/workspace"
)

// runtime holds the components shared by the HTTP and MCP entry points.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	db      *index.DB
	ws      *workspace.Manager
	svc     *markservice.Service
	version string
}

func (rt *runtime) close() {
	if err := rt.ws.Close(); err != nil {
		rt.logger.Error("flush on shutdown failed", slog.String("error", err.Error()))
	}
	if err := rt.db.Close(); err != nil {
		rt.logger.Error("index close failed", slog.String("error", err.Error()))
	}
}

func setup(ctx context.Context, opts []Option, listeners ...registry.Listener) (*runtime, error) {
	app := &application{version: "dev", logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("index_path", cfg.Index.Path),
		slog.Int("max_marks", cfg.Marks.MaxMarks),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	resolver := project.NewResolver(
		project.WithCacheTTL(cfg.Project.CacheTTL),
		project.WithMarkers(cfg.Project.Markers),
	)

	wsOpts := []workspace.Option{workspace.WithListener(index.Listener(db, logger))}
	for _, l := range listeners {
		wsOpts = append(wsOpts, workspace.WithListener(l))
	}
	ws := workspace.NewManager(resolver, workspace.Settings{
		DataDir:  cfg.Storage.DataDir,
		AutoSave: cfg.Storage.AutoSave,
		Backup:   cfg.Storage.Backup,
		Registry: registry.Config{
			MaxMarks:    cfg.Marks.MaxMarks,
			Debounce:    cfg.Storage.Debounce(),
			TrackAccess: cfg.Marks.TrackAccess,
			HistorySize: cfg.Marks.HistorySize,
		},
	}, logger, wsOpts...)

	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		ws:      ws,
		svc:     markservice.NewService(ws, db, cfg.Project.Dir),
		version: app.version,
	}

	// Open the default project and refresh its index entry.
	reg, err := rt.svc.Registry(ctx, cfg.Project.Dir)
	if err != nil {
		logger.Warn("default project unavailable", slog.String("error", err.Error()))
	} else if err := index.Sync(db, reg, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return rt, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(ctx, opts, broker.Listener())
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.logger

	// Build API router.
	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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
		defer signal.Stop(quit)

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

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Pending saves are flushed before it returns.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("MCP server starting on stdio", slog.String("version", rt.version))
	if err := mcpserver.New(rt.svc, rt.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	rt.logger.Info("MCP server stopped")
	return nil
}

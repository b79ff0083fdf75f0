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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/matcluster/internal/api"
	"github.com/starford/matcluster/internal/catalog"
	"github.com/starford/matcluster/internal/clusterservice"
	"github.com/starford/matcluster/internal/editor"
	"github.com/starford/matcluster/internal/mcpserver"
	"github.com/starford/matcluster/internal/parser"
	"github.com/starford/matcluster/internal/remote"
	"github.com/starford/matcluster/internal/sse"
	"github.com/starford/matcluster/internal/storage"
)

// backend holds what every command shares: logger, catalog and layouts.
type backend struct {
	cfg    *Config
	logger *slog.Logger
	db     *catalog.DB
	store  *storage.FS
}

// configure applies opts and installs the JSON logger.
func configure(opts []Option) (*Config, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("layouts_path", cfg.Layouts.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return cfg, logger, nil
}

func setup(opts []Option) (*backend, error) {
	cfg, logger, err := configure(opts)
	if err != nil {
		return nil, err
	}
	return openBackend(cfg, logger)
}

// openBackend opens the local catalog and layout directory.
func openBackend(cfg *Config, logger *slog.Logger) (*backend, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Layouts.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	return &backend{cfg: cfg, logger: logger, db: db, store: store}, nil
}

// Run starts the HTTP backend with the given options.
func Run(ctx context.Context, opts ...Option) error {
	b, err := setup(opts)
	if err != nil {
		return err
	}
	defer b.db.Close()
	cfg, logger := b.cfg, b.logger

	if err := catalog.SyncLayouts(b.db, b.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := clusterservice.NewService(b.db, b.store, broker, logger)
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := b.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Layout watcher; edits from outside this process reach editors as events.
	g.Go(func() error {
		err := catalog.WatchLayouts(gCtx, b.db, b.store, b.store.Root(), logger, func(kind, file string) {
			broker.PublishChange(sse.Change{Resource: "layout", Kind: kind, Data: map[string]any{"file": file}})
		})
		if err != nil {
			logger.Error("layout watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		broker.Close()
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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves an editor session over MCP stdio. The session talks to the
// configured backend, or to the local catalog when no backend is set.
func RunMCP(ctx context.Context, opts ...Option) error {
	session, view, closeFn, err := newEditorSession(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer closeFn()

	if err := session.Load(ctx, clusterservice.AllCategories); err != nil {
		slog.Warn("editor: initial load failed", slog.String("error", err.Error()))
	}
	return view.ServeStdio()
}

// newEditorSession builds the editor behind the MCP server. A remote backend
// needs only the logger; the local catalog is opened otherwise.
func newEditorSession(opts []Option) (*editor.Session, *mcpserver.Server, func(), error) {
	cfg, logger, err := configure(opts)
	if err != nil {
		return nil, nil, nil, err
	}

	var view *mcpserver.Server
	scroll := func(delta float64) { view.Scroll(delta) }

	var (
		session *editor.Session
		closers []func()
	)
	if cfg.Remote.Enabled() {
		c := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout, logger)
		session = editor.NewSession(c, c, cfg.Editor.Session(), logger, scroll)
		logger.Info("editor: using remote backend", slog.String("base_url", cfg.Remote.BaseURL))
	} else {
		b, err := openBackend(cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = b.db.Close() })
		local := clusterservice.NewLocal(clusterservice.NewService(b.db, b.store, nil, logger))
		session = editor.NewSession(local, local, cfg.Editor.Session(), logger, scroll)
		logger.Info("editor: using local catalog")
	}
	view = mcpserver.New(session)

	closeFn := func() {
		session.Close()
		for _, c := range closers {
			c()
		}
	}
	return session, view, closeFn, nil
}

// Import reads a YAML material sheet from r into the catalog.
func Import(ctx context.Context, r io.Reader, opts ...Option) (int, error) {
	b, err := setup(opts)
	if err != nil {
		return 0, err
	}
	defer b.db.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read import: %w", err)
	}
	rows, err := parser.ParseMaterials(data)
	if err != nil {
		return 0, err
	}
	svc := clusterservice.NewService(b.db, b.store, nil, b.logger)
	n, err := svc.ImportMaterials(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("import materials: %w", err)
	}
	b.logger.Info("Materials imported", slog.Int("count", n))
	return n, nil
}

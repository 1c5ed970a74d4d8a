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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/mcpserver"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/source"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/views"
	"github.com/starford/dagaz/internal/viewservice"
)

// components are the wired parts shared by every command.
type components struct {
	cfg     *Config
	log     *slog.Logger
	catalog *views.Catalog
	sources *source.Registry
	journal *journal.DB
	broker  *sse.Broker
	svc     *viewservice.Service
}

func (c *components) Close() {
	c.sources.Close()
	c.broker.Close()
	if err := c.journal.Close(); err != nil {
		c.log.Warn("journal close failed", slog.String("error", err.Error()))
	}
}

func setup(opts []Option) (*components, error) {
	app := &application{logOutput: os.Stdout}

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
		slog.String("remote_base_url", cfg.Remote.BaseURL),
		slog.String("definitions_file", cfg.Views.DefinitionsFile),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.Views.TimeLocation()
	if err != nil {
		return nil, fmt.Errorf("views location: %w", err)
	}
	catalog := views.NewCatalog(loc)
	if cfg.Views.DefinitionsFile != "" {
		changed, err := catalog.Load(cfg.Views.DefinitionsFile)
		if err != nil {
			return nil, fmt.Errorf("load view definitions: %w", err)
		}
		logger.Info("view definitions loaded", slog.Int("overridden", len(changed)))
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	client := remote.NewClient(cfg.Remote.BaseURL, logger,
		remote.WithTimeout(cfg.Remote.Timeout),
		remote.WithRetryDelay(cfg.Remote.RetryDelay),
	)

	broker := sse.NewBroker(cfg.Events.DashboardThrottle)
	sources := source.NewRegistry(catalog, client, logger, func(ev source.Event) {
		se := sse.SourceEvent{View: ev.View, Failed: ev.Kind == source.EventFailed, Count: ev.Count}
		if ev.Err != nil {
			se.Error = ev.Err.Error()
		}
		broker.PublishSource(se)
	})

	svc := viewservice.New(catalog, sources, client, db, logger,
		viewservice.WithPageSize(cfg.Views.PageSize),
		viewservice.WithAutoCloseDelay(cfg.Review.AutoCloseDelay),
		viewservice.WithPublisher(broker),
	)

	return &components{
		cfg:     cfg,
		log:     logger,
		catalog: catalog,
		sources: sources,
		journal: db,
		broker:  broker,
		svc:     svc,
	}, nil
}

// watchDefinitions hot reloads the view definitions file. Changed views drop
// their cached records and onChange runs with their names.
func (c *components) watchDefinitions(ctx context.Context, onChange func([]views.Name)) error {
	if c.cfg.Views.DefinitionsFile == "" {
		return nil
	}
	return c.catalog.Watch(ctx, c.cfg.Views.DefinitionsFile, c.log, func(changed []views.Name) {
		c.sources.Unmount(changed...)
		c.broker.Publish(sse.Event{Type: sse.TypeViewsReloaded, Data: changed})
		if onChange != nil {
			onChange(changed)
		}
	})
}

// refreshLoop refetches every view on the configured interval.
func (c *components) refreshLoop(ctx context.Context) error {
	if c.cfg.Views.RefreshInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(c.cfg.Views.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.svc.RefreshAll(ctx); err != nil {
				c.log.Warn("scheduled refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	c, err := setup(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg, logger := c.cfg, c.log

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker, cfg.Review.MaxUploadBytes)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(cfg.App.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.App.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Export-Rows"},
			AllowCredentials: true,
		}).Handler)
	}

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
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Hot reload of view definitions.
	g.Go(func() error {
		if err := c.watchDefinitions(gCtx, nil); err != nil {
			logger.Warn("definitions watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Scheduled refresh.
	g.Go(func() error {
		return c.refreshLoop(gCtx)
	})

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the remaining run loops once the server is down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the view tools over stdio. Logs must not go to stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer c.Close()

	var sink storage.Sink
	if c.cfg.Views.ExportDir != "" {
		fs, err := storage.NewFS(c.cfg.Views.ExportDir)
		if err != nil {
			return fmt.Errorf("init export dir: %w", err)
		}
		sink = fs
	}

	srv := mcpserver.New(c.svc, sink, c.log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := c.watchDefinitions(ctx, srv.Forget); err != nil {
			c.log.Warn("definitions watcher stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		_ = c.refreshLoop(ctx)
	}()

	c.log.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// ExportRequest describes a one-shot export.
type ExportRequest struct {
	View   views.Name
	Filter filter.State
	Format string
	OutDir string
}

// RunExport writes one filtered view to req.OutDir and returns the file path.
func RunExport(ctx context.Context, req ExportRequest, opts ...Option) (string, error) {
	c, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return "", err
	}
	defer c.Close()

	outDir := req.OutDir
	if outDir == "" {
		outDir = c.cfg.Views.ExportDir
	}
	sink, err := storage.NewFS(outDir)
	if err != nil {
		return "", fmt.Errorf("init export dir: %w", err)
	}

	exp, err := c.svc.Export(ctx, req.View, viewservice.Query{Filter: req.Filter}, req.Format)
	if err != nil {
		return "", err
	}
	if err := sink.WriteFrom(exp.Filename, exp.Write); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}

	c.log.Info("export written", slog.String("view", string(exp.View)), slog.String("file", exp.Filename), slog.Int("rows", exp.Rows))
	return filepath.Join(sink.Root(), exp.Filename), nil
}

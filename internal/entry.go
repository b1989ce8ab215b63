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

	"github.com/starford/marginalia/internal/api"
	"github.com/starford/marginalia/internal/cache"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/inbox"
	"github.com/starford/marginalia/internal/mcpserver"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/noteservice"
	"github.com/starford/marginalia/internal/pipeline"
	"github.com/starford/marginalia/internal/sse"
	"github.com/starford/marginalia/internal/storage"
	"github.com/starford/marginalia/internal/suggest"
)

// deps are the long-lived components every command needs.
type deps struct {
	logger *slog.Logger
	db     *cache.DB
	out    *storage.FS
	conv   *pipeline.Converter
}

func newApplication(opts []Option, logOutput io.Writer) (*application, error) {
	app := &application{logOutput: logOutput}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// open sets up logging, the output directory, the cache and the converter.
// progress, if non-nil, receives every run's progress events.
func (a *application) open(progress pipeline.ProgressFunc) (*deps, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("output_path", cfg.Output.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("suggestions", cfg.Suggest.Enabled() || a.completer != nil),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure output directory exists.
	if err := os.MkdirAll(cfg.Output.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(cfg.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := cache.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	convOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithCache(db),
		pipeline.WithDefaults(cfg.Suggest.Settings()),
	}
	if progress != nil {
		convOpts = append(convOpts, pipeline.WithProgress(progress))
	}

	completer, model := a.completer, cfg.Suggest.Model
	if completer == nil && cfg.Suggest.Enabled() {
		c := suggest.NewAnthropicCompleter(cfg.Suggest.APIKey,
			suggest.WithModel(cfg.Suggest.Model),
			suggest.WithMaxTokens(cfg.Suggest.MaxTokens))
		completer, model = c, c.Model()
	}
	if completer != nil {
		convOpts = append(convOpts, pipeline.WithSuggester(suggest.NewClient(completer, cfg.Suggest.Timeout), model))
	}

	return &deps{
		logger: logger,
		db:     db,
		out:    out,
		conv:   pipeline.New(convOpts...),
	}, nil
}

// Run starts the HTTP server and, when enabled, the inbox watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(250 * time.Millisecond)
	defer broker.Close()

	d, err := app.open(broker.PublishProgress)
	if err != nil {
		return err
	}
	defer d.db.Close()
	logger := d.logger

	// Build API service and router.
	svc := noteservice.NewService(d.conv, d.db, pipeline.NewSession(), d.out)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := d.db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"cache unavailable"}`))
			return
		}
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

	// Start inbox watcher with SSE callback.
	if cfg.Inbox.Enabled {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		in, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		proc := inbox.NewProcessor(d.conv, in, d.out, logger, broker.PublishInboxEvent)
		g.Go(func() error {
			if err := inbox.Watch(gCtx, proc, in.Root(), logger); err != nil {
				return fmt.Errorf("inbox watcher: %w", err)
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

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	d, err := app.open(nil)
	if err != nil {
		return err
	}
	defer d.db.Close()

	svc := noteservice.NewService(d.conv, d.db, pipeline.NewSession(), d.out)
	d.logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}

// Convert runs one conversion. Stream formats are written to w; the dir
// format writes the notes under the output directory and returns their paths.
func Convert(ctx context.Context, req pipeline.Request, format export.Format, w io.Writer, opts ...Option) (*pipeline.Result, []string, error) {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	d, err := app.open(nil)
	if err != nil {
		return nil, nil, err
	}
	defer d.db.Close()

	res, err := d.conv.Convert(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	d.logger.Info("Conversion finished",
		slog.String("run_id", res.Report.RunID),
		slog.String("tagging", string(res.Report.Tagging)),
		slog.Int("quotes", res.Report.Quotes),
		slog.Int("notes", res.Report.Notes),
		slog.Int("fallback", res.Report.Fallback))

	if format == export.FormatDir {
		paths, err := export.Dir(d.out, notes.SourceStem(res.Source.Title), res.Notes)
		return res, paths, err
	}
	return res, nil, export.Write(w, format, res.Notes)
}

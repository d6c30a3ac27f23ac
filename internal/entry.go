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
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultchat/internal/api"
	"github.com/starford/vaultchat/internal/assembler"
	"github.com/starford/vaultchat/internal/assistant"
	"github.com/starford/vaultchat/internal/llm"
	"github.com/starford/vaultchat/internal/mcpserver"
	"github.com/starford/vaultchat/internal/sse"
	"github.com/starford/vaultchat/internal/storage"
	"github.com/starford/vaultchat/internal/tokens"
	"github.com/starford/vaultchat/internal/transcript"
	"github.com/starford/vaultchat/internal/watch"
)

// Runtime is a fully wired assistant over one vault.
type Runtime struct {
	Config    *Config
	Logger    *slog.Logger
	Store     *storage.FS
	Assistant *assistant.Service

	transcripts *transcript.DB
}

// Close releases the transcript database.
func (rt *Runtime) Close() error {
	if rt.transcripts != nil {
		return rt.transcripts.Close()
	}
	return nil
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// Open wires storage, the model transport, transcripts and the assistant.
// The caller must Close the returned Runtime.
func Open(ctx context.Context, opts ...Option) (*Runtime, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return app.open(ctx)
}

func (app *application) open(ctx context.Context, extra ...assistant.Option) (*Runtime, error) {
	cfg := app.config
	logger := app.logger

	logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.Bool("transcripts", cfg.Transcripts.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.StorageOptions()...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	completer, err := llm.New(ctx, cfg.LLM.Client())
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	counter, err := tokens.NewCounter(cfg.Context.TokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, using estimate",
			slog.String("encoding", cfg.Context.TokenEncoding),
			slog.String("error", err.Error()))
	}
	asm := assembler.New(cfg.Context.Budgets, assembler.WithCounter(counter), assembler.WithLogger(logger))

	rt := &Runtime{Config: cfg, Logger: logger, Store: store}

	svcOpts := []assistant.Option{
		assistant.WithLogger(logger),
		assistant.WithMaxTokens(cfg.LLM.ChatMaxTokens, cfg.LLM.GenerateMaxTokens),
	}
	if cfg.Transcripts.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Transcripts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create transcripts dir: %w", err)
		}
		db, err := transcript.Open(cfg.Transcripts.Path)
		if err != nil {
			return nil, fmt.Errorf("init transcripts: %w", err)
		}
		rt.transcripts = db
		svcOpts = append(svcOpts, assistant.WithTranscripts(db))
	}
	svcOpts = append(svcOpts, extra...)

	rt.Assistant = assistant.New(store, completer, asm, svcOpts...)
	return rt, nil
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Logger.Info("MCP server starting on stdio", slog.String("vault_path", rt.Store.Root()))
	return mcpserver.New(rt.Assistant, app.version).ServeStdio()
}

// Run starts the HTTP server, the vault watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := app.open(ctx, assistant.WithTurnHook(broker.PublishTurn))
	if err != nil {
		return err
	}
	defer rt.Close()

	apiRouter := api.NewRouter(rt.Assistant, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := watch.Watch(gCtx, rt.Store, logger, func(kind watch.Kind, rel string) {
			broker.PublishNoteEvent(string(kind), rel)
		})
		if err != nil {
			logger.Warn("vault watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.App.HTTP.Address()),
			slog.String("vault_path", rt.Store.Root()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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
		// Stops the watcher.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/catmaid/backend/internal/app"
	"github.com/zhouzirui/catmaid/backend/internal/config"
	"github.com/zhouzirui/catmaid/backend/internal/handler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using system environment only", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(os.Stderr, cfg.Log))

	a, err := app.Open(cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err, "db_path", cfg.Store.Path)
		os.Exit(1)
	}
	defer a.Close()
	slog.Info("database initialized", "db_path", cfg.Store.Path)

	if !cfg.AI.Enabled() {
		slog.Warn("model backend is not fully configured, turns will fail until it is", "provider", cfg.AI.Provider)
	}
	processor, err := a.Processor(ctx)
	if err != nil {
		slog.Error("failed to initialize model backend", "error", err, "provider", cfg.AI.Provider)
		os.Exit(1)
	}
	slog.Info("model backend initialized", "provider", cfg.AI.Provider)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Scheduler.Run(ctx)
	}()

	router := handler.NewRouter(handler.Deps{
		Personas:     a.Personas,
		Turns:        processor,
		Statuses:     a.Statuses,
		History:      a.History,
		Store:        a.Store,
		HistoryLimit: cfg.History.MaxEntries,
		BotID:        cfg.Bot.QQ,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	err = startServer(ctx, cfg.Server, router)
	stop()
	wg.Wait()
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("catmaid backend listening", "addr", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

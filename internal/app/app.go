// Package app assembles the services shared by the API server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zhouzirui/catmaid/backend/internal/config"
	"github.com/zhouzirui/catmaid/backend/internal/model/persona"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/ai"
	"github.com/zhouzirui/catmaid/backend/internal/service/history"
	"github.com/zhouzirui/catmaid/backend/internal/service/recovery"
	statusService "github.com/zhouzirui/catmaid/backend/internal/service/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/turn"
	"github.com/zhouzirui/catmaid/backend/internal/store"
)

// App holds the storage-backed services. The model backend is created on
// demand by Processor so storage-only tools work without credentials.
type App struct {
	Config    *config.Config
	Store     *store.SQLiteStore
	Personas  *persona.MemoryStore
	Statuses  *statusService.Service
	History   *history.Service
	Scheduler *recovery.Scheduler
}

// Open opens the database and wires the services.
func Open(cfg *config.Config) (*App, error) {
	personas, err := persona.LoadFile(cfg.Persona.File)
	if err != nil {
		return nil, err
	}

	repo, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	statuses := statusService.NewService(repo, statusService.Config{
		Limits: status.Limits{Max: cfg.Status.Max},
		Initial: status.Initial{
			Affection: cfg.Status.InitialAffection,
			Stamina:   cfg.Status.InitialStamina,
			Mood:      cfg.Status.InitialMood,
		},
	})

	scheduler := recovery.NewScheduler(statuses, recovery.Policy{
		WakeInterval:    cfg.Recovery.WakeInterval,
		StaminaInterval: cfg.Recovery.StaminaInterval,
		StaminaAmount:   cfg.Recovery.StaminaAmount,
		MoodInterval:    cfg.Recovery.MoodInterval,
		MoodAmount:      cfg.Recovery.MoodAmount,
		MoodMidpoint:    cfg.Recovery.MoodMidpoint,
		Max:             cfg.Status.Max,
	})

	return &App{
		Config:    cfg,
		Store:     repo,
		Personas:  persona.NewMemoryStore(personas),
		Statuses:  statuses,
		History:   history.NewService(repo, nil),
		Scheduler: scheduler,
	}, nil
}

// Processor creates the configured model backend and the turn processor.
func (a *App) Processor(ctx context.Context) (*turn.Processor, error) {
	generator, err := ai.New(ctx, a.Config.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model backend: %w", err)
	}
	return a.ProcessorWith(generator), nil
}

// ProcessorWith builds a turn processor around generator.
func (a *App) ProcessorWith(generator ai.Generator) *turn.Processor {
	return turn.NewProcessor(a.Store, a.Statuses, a.History, generator, a.Personas.Default(), turn.Config{
		HistoryLimit: a.Config.History.MaxEntries,
		MaxEntries:   a.Config.History.MaxEntries,
		MaxChars:     a.Config.History.MaxChars,
		Timeout:      a.Config.AI.Timeout,
	})
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// NewLogger builds the process logger from cfg.
func NewLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

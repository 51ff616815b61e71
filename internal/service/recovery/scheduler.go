package recovery

import (
	"context"
	"log/slog"
	"time"

	statusService "github.com/zhouzirui/catmaid/backend/internal/service/status"
)

// Recoverer applies a recovery function to every stored status.
type Recoverer interface {
	RecoverAll(ctx context.Context, fn statusService.RecoverFunc) (statusService.RecoveryResult, error)
}

// Scheduler runs the recovery pass periodically.
type Scheduler struct {
	statuses Recoverer
	policy   Policy
}

// NewScheduler creates a scheduler. Invalid policies fall back to DefaultPolicy.
func NewScheduler(statuses Recoverer, policy Policy) *Scheduler {
	if err := policy.Validate(); err != nil {
		slog.Warn("invalid recovery policy, using defaults", "error", err)
		policy = DefaultPolicy
	}
	return &Scheduler{statuses: statuses, policy: policy}
}

// Policy returns the active policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// RunOnce performs a single recovery pass over every user.
func (s *Scheduler) RunOnce(ctx context.Context) (statusService.RecoveryResult, error) {
	start := time.Now()
	res, err := s.statuses.RecoverAll(ctx, s.policy.Apply)
	if err != nil {
		return res, err
	}

	if res.Updated > 0 {
		slog.Info("recovery pass completed",
			"processed", res.Processed,
			"updated", res.Updated,
			"restamped", res.Restamped,
			"duration", time.Since(start))
	} else {
		slog.Debug("recovery pass completed", "processed", res.Processed, "restamped", res.Restamped)
	}
	return res, nil
}

// Run performs a pass immediately and then every WakeInterval until ctx is
// done. A failed pass is logged and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("recovery scheduler started", "interval", s.policy.WakeInterval)

	s.runLogged(ctx)

	ticker := time.NewTicker(s.policy.WakeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx)
		case <-ctx.Done():
			slog.Info("recovery scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovery pass panicked", "panic", r)
		}
	}()

	if _, err := s.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("recovery pass failed", "error", err)
	}
}

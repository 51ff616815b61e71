package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhouzirui/catmaid/backend/internal/model/status"
	"github.com/zhouzirui/catmaid/backend/internal/store"
)

// ErrUserRequired is returned for an empty user ID.
var ErrUserRequired = errors.New("user id is required")

// Config controls attribute bounds and the values of new rows.
type Config struct {
	Limits  status.Limits
	Initial status.Initial
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service is the only writer of status rows. Every read-modify-write runs in
// one store transaction, so concurrent writers never lose an update.
type Service struct {
	repo    store.Repository
	limits  status.Limits
	initial status.Initial
	now     func() time.Time
}

// NewService wires the status manager to the repository.
func NewService(repo store.Repository, cfg Config) *Service {
	if cfg.Limits.Max <= 0 {
		cfg.Limits = status.DefaultLimits
	}
	if cfg.Initial == (status.Initial{}) {
		cfg.Initial = status.DefaultInitial
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:    repo,
		limits:  cfg.Limits,
		initial: cfg.Initial,
		now:     cfg.Now,
	}
}

// Limits returns the configured attribute bounds.
func (s *Service) Limits() status.Limits {
	return s.limits
}

// Get returns the status for userID, creating it at the initial values on
// first access.
func (s *Service) Get(ctx context.Context, userID string) (status.UserStatus, error) {
	if userID == "" {
		return status.UserStatus{}, ErrUserRequired
	}

	var out status.UserStatus
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		st, err := s.getOrCreate(ctx, userID)
		out = st
		return err
	})
	if err != nil {
		return status.UserStatus{}, fmt.Errorf("get status for %s: %w", userID, err)
	}
	return out, nil
}

// ApplyDelta adds d to the freshly read status of userID, clamping each field
// to [0, Max], and returns the stored result. Recovery baselines are left
// untouched.
func (s *Service) ApplyDelta(ctx context.Context, userID string, d status.Delta) (status.UserStatus, error) {
	if userID == "" {
		return status.UserStatus{}, ErrUserRequired
	}

	var out status.UserStatus
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		current, err := s.getOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		next := s.limits.Apply(current, d)
		next.UpdatedAt = s.now()
		if err := s.repo.Conn(ctx).SaveStatus(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return status.UserStatus{}, fmt.Errorf("apply delta for %s: %w", userID, err)
	}

	if store.InTransaction(ctx) {
		return out, nil
	}
	slog.Info("status updated",
		"user_id", userID,
		"affection", out.Affection,
		"stamina", out.Stamina,
		"mood", out.Mood)
	return out, nil
}

// Reset deletes the status row and chat history of userID and recreates the
// row at the initial values.
func (s *Service) Reset(ctx context.Context, userID string) (status.UserStatus, error) {
	if userID == "" {
		return status.UserStatus{}, ErrUserRequired
	}

	fresh := s.initial.New(userID, s.now())
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		q := s.repo.Conn(ctx)
		if err := q.DeleteStatus(ctx, userID); err != nil {
			return err
		}
		if _, err := q.DeleteUserEntries(ctx, userID); err != nil {
			return err
		}
		_, err := q.InsertStatus(ctx, fresh)
		return err
	})
	if err != nil {
		return status.UserStatus{}, fmt.Errorf("reset %s: %w", userID, err)
	}

	slog.Info("chat history and status reset", "user_id", userID)
	return fresh, nil
}

// List returns every status row.
func (s *Service) List(ctx context.Context) ([]status.UserStatus, error) {
	return s.repo.Conn(ctx).ListStatuses(ctx)
}

// RecoveryResult summarises one RecoverAll pass.
type RecoveryResult struct {
	Processed int
	Updated   int
	Restamped int
}

// RecoverFunc computes the next status of a row at now.
type RecoverFunc func(current status.UserStatus, now time.Time) status.UserStatus

// RecoverAll applies fn to every row inside a single transaction and writes
// back rows whose values or baselines changed. Values returned by fn are
// clamped like any other write.
func (s *Service) RecoverAll(ctx context.Context, fn RecoverFunc) (RecoveryResult, error) {
	var res RecoveryResult
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		res = RecoveryResult{}
		q := s.repo.Conn(ctx)

		rows, err := q.ListStatuses(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		for _, current := range rows {
			res.Processed++

			next := fn(current, now)
			next.UserID = current.UserID
			next.Affection = s.limits.Clamp(next.Affection)
			next.Stamina = s.limits.Clamp(next.Stamina)
			next.Mood = s.limits.Clamp(next.Mood)

			valuesChanged := next.Affection != current.Affection ||
				next.Stamina != current.Stamina ||
				next.Mood != current.Mood
			baselinesChanged := !next.LastStaminaUpdate.Equal(current.LastStaminaUpdate) ||
				!next.LastMoodUpdate.Equal(current.LastMoodUpdate)

			switch {
			case valuesChanged:
				res.Updated++
				next.UpdatedAt = now
			case baselinesChanged:
				res.Restamped++
			default:
				continue
			}

			if err := q.SaveStatus(ctx, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("recover statuses: %w", err)
	}
	return res, nil
}

func (s *Service) getOrCreate(ctx context.Context, userID string) (status.UserStatus, error) {
	q := s.repo.Conn(ctx)

	current, err := q.GetStatus(ctx, userID)
	if err != nil {
		return status.UserStatus{}, err
	}
	if current != nil {
		return *current, nil
	}

	fresh := s.initial.New(userID, s.now())
	inserted, err := q.InsertStatus(ctx, fresh)
	if err != nil {
		return status.UserStatus{}, err
	}
	if !inserted {
		// Another writer created it between the read and the insert.
		current, err = q.GetStatus(ctx, userID)
		if err != nil {
			return status.UserStatus{}, err
		}
		if current == nil {
			return status.UserStatus{}, fmt.Errorf("status for %s vanished after insert", userID)
		}
		return *current, nil
	}

	slog.Debug("status created", "user_id", userID)
	return fresh, nil
}

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/catmaid/backend/internal/model/chat"
	"github.com/zhouzirui/catmaid/backend/internal/store"
)

// ErrUserRequired is returned for an empty user ID.
var ErrUserRequired = errors.New("user id is required")

// Service reads and writes per-user transcripts.
type Service struct {
	repo store.Repository
	now  func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewService creates a history manager. A nil now uses time.Now.
func NewService(repo store.Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// stamp returns a timestamp strictly after every one it issued before.
func (s *Service) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// Append stores one entry for userID.
func (s *Service) Append(ctx context.Context, userID, turnID string, role chat.Role, content string) (chat.Entry, error) {
	if userID == "" {
		return chat.Entry{}, ErrUserRequired
	}
	if !role.Valid() {
		return chat.Entry{}, fmt.Errorf("invalid role %q", role)
	}

	entry := chat.Entry{
		UserID:    userID,
		TurnID:    turnID,
		Role:      role,
		Content:   content,
		Timestamp: s.stamp(),
	}
	id, err := s.repo.Conn(ctx).AppendEntry(ctx, entry)
	if err != nil {
		return chat.Entry{}, fmt.Errorf("append %s entry for %s: %w", role, userID, err)
	}
	entry.ID = id
	return entry, nil
}

// AppendTurn stores the user message and the assistant reply of one turn,
// the reply strictly after the message.
func (s *Service) AppendTurn(ctx context.Context, userID, turnID, message, reply string) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Append(ctx, userID, turnID, chat.RoleUser, message); err != nil {
			return err
		}
		_, err := s.Append(ctx, userID, turnID, chat.RoleAssistant, reply)
		return err
	})
}

// Recent returns at most limit of the newest entries, oldest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]chat.Entry, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		return []chat.Entry{}, nil
	}

	entries, err := s.repo.Conn(ctx).RecentEntries(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Trim deletes all but the maxEntries newest entries once the transcript
// holds more than maxEntries entries or more than maxChars characters.
// It returns the number of deleted entries.
func (s *Service) Trim(ctx context.Context, userID string, maxEntries, maxChars int) (int64, error) {
	if userID == "" {
		return 0, ErrUserRequired
	}
	if maxEntries < 0 {
		maxEntries = 0
	}

	var deleted int64
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		q := s.repo.Conn(ctx)
		entries, err := q.ListEntries(ctx, userID)
		if err != nil {
			return err
		}

		chars := 0
		for _, e := range entries {
			chars += utf8.RuneCountInString(e.Content)
		}
		if len(entries) <= maxEntries && chars <= maxChars {
			return nil
		}
		// The character budget only triggers a trim. It never cuts below
		// maxEntries.
		if len(entries) <= maxEntries {
			return nil
		}

		stale := entries[maxEntries:]
		ids := make([]int64, 0, len(stale))
		for _, e := range stale {
			ids = append(ids, e.ID)
		}
		deleted, err = q.DeleteEntries(ctx, ids)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("trim history for %s: %w", userID, err)
	}

	if deleted > 0 {
		slog.Info("chat history trimmed", "user_id", userID, "deleted", deleted)
	}
	return deleted, nil
}

// Clear deletes every entry for userID.
func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUserRequired
	}
	n, err := s.repo.Conn(ctx).DeleteUserEntries(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history for %s: %w", userID, err)
	}
	return n, nil
}

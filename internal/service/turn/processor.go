// Package turn runs one conversational turn end to end.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/catmaid/backend/internal/analysis/directive"
	"github.com/zhouzirui/catmaid/backend/internal/model/message"
	"github.com/zhouzirui/catmaid/backend/internal/model/persona"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
	"github.com/zhouzirui/catmaid/backend/internal/service/ai"
	"github.com/zhouzirui/catmaid/backend/internal/service/history"
	statusService "github.com/zhouzirui/catmaid/backend/internal/service/status"
	"github.com/zhouzirui/catmaid/backend/internal/store"
)

var (
	// ErrInvalidUser is returned for a missing or malformed user ID.
	ErrInvalidUser = errors.New("invalid user id")
	// ErrTooTired is returned when stamina is exhausted.
	ErrTooTired = errors.New("stamina exhausted")
	// ErrEmptyMessage is returned when nothing is left after normalisation.
	ErrEmptyMessage = errors.New("empty message")
)

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,50}$`)

// ValidUserID reports whether id is 1 to 50 ASCII letters, digits or underscores.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// Config bounds the context and the transcript.
type Config struct {
	// HistoryLimit is how many recent entries the model sees.
	HistoryLimit int
	MaxEntries   int
	MaxChars     int
	Timeout      time.Duration
}

// DefaultConfig matches the product defaults.
var DefaultConfig = Config{
	HistoryLimit: 8,
	MaxEntries:   8,
	MaxChars:     10000,
	Timeout:      60 * time.Second,
}

// Result is the outcome of a turn. Status is set whenever it was loaded.
type Result struct {
	TurnID string
	Reply  string
	Status status.UserStatus
	Delta  status.Delta
}

// Processor owns the turn state machine.
type Processor struct {
	repo         store.Repository
	statuses     *statusService.Service
	history      *history.Service
	generator    ai.Generator
	systemPrompt string
	cfg          Config
}

// NewProcessor wires the processor. The system prompt is rendered once from p.
func NewProcessor(repo store.Repository, statuses *statusService.Service, hist *history.Service, generator ai.Generator, p persona.Persona, cfg Config) *Processor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	return &Processor{
		repo:         repo,
		statuses:     statuses,
		history:      hist,
		generator:    generator,
		systemPrompt: ai.NewPersonaPromptManager().BuildSystemPrompt(p),
		cfg:          cfg,
	}
}

// ProcessTurn runs one turn and always returns a user facing reply.
func (p *Processor) ProcessTurn(ctx context.Context, userID string, in message.Input) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("turn panicked", "user_id", userID, "panic", r)
			reply = ReplyFailure
		}
	}()

	res, err := p.Turn(ctx, userID, in)
	return p.replyFor(res, err)
}

// Turn runs one turn and reports failures as errors. Replies for failures
// are produced by ProcessTurn.
func (p *Processor) Turn(ctx context.Context, userID string, in message.Input) (Result, error) {
	res := Result{TurnID: uuid.NewString()}
	log := slog.With("user_id", userID, "turn_id", res.TurnID)

	if !ValidUserID(userID) {
		log.Warn("invalid or missing user id")
		return res, ErrInvalidUser
	}

	current, err := p.statuses.Get(ctx, userID)
	if err != nil {
		log.Error("failed to load status", "error", err)
		return res, err
	}
	res.Status = current

	if current.Stamina <= 0 {
		log.Info("turn rejected, stamina exhausted")
		return res, ErrTooTired
	}

	text := message.Normalize(in)
	if text == "" {
		log.Warn("empty or invalid message content")
		return res, ErrEmptyMessage
	}

	entries, err := p.history.Recent(ctx, userID, p.cfg.HistoryLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return res, err
	}

	messages, err := ai.BuildMessages(ctx, ai.Conversation{
		SystemPrompt: p.systemPrompt,
		History:      entries,
		Status:       current,
		Max:          p.statuses.Limits().Max,
		Query:        text,
	})
	if err != nil {
		log.Error("failed to build model context", "error", err)
		return res, err
	}

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	raw, err := p.generator.Generate(genCtx, messages)
	cancel()
	if err != nil {
		log.Error("model call failed", "error", err)
		if !errors.Is(err, ai.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
		}
		return res, err
	}

	clean := directive.StripReasoning(raw)
	res.Delta = directive.Parse(raw)

	var next status.UserStatus
	err = p.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if next, err = p.statuses.ApplyDelta(ctx, userID, res.Delta); err != nil {
			return err
		}
		if err := p.history.AppendTurn(ctx, userID, res.TurnID, text, clean); err != nil {
			return err
		}
		_, err = p.history.Trim(ctx, userID, p.cfg.MaxEntries, p.cfg.MaxChars)
		return err
	})
	if err != nil {
		log.Error("failed to commit turn", "error", err)
		return res, err
	}

	res.Status = next
	res.Reply = clean + "\n" + Footer(next, p.statuses.Limits().Max)
	log.Info("turn completed",
		"affection", next.Affection,
		"stamina", next.Stamina,
		"mood", next.Mood,
		"delta_affection", res.Delta.Affection,
		"delta_stamina", res.Delta.Stamina,
		"delta_mood", res.Delta.Mood)
	return res, nil
}

// ResetUser clears history and restores the initial status.
func (p *Processor) ResetUser(ctx context.Context, userID string) string {
	if !ValidUserID(userID) {
		slog.Warn("reset rejected, invalid or missing user id")
		return ReplyLogin
	}
	if _, err := p.statuses.Reset(ctx, userID); err != nil {
		slog.Error("failed to reset user", "user_id", userID, "error", err)
		return ReplyFailure
	}
	return ReplyReset
}

func (p *Processor) replyFor(res Result, err error) string {
	switch {
	case err == nil:
		return res.Reply
	case errors.Is(err, ErrInvalidUser):
		return ReplyLogin
	case errors.Is(err, ErrTooTired):
		return ReplyTired + "\n" + Footer(res.Status, p.statuses.Limits().Max)
	case errors.Is(err, ErrEmptyMessage):
		return ReplyInvalid
	case errors.Is(err, ai.ErrUnavailable):
		return ReplyUnavailable
	default:
		return ReplyFailure
	}
}

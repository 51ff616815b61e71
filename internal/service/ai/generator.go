package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/catmaid/backend/internal/config"
)

// ErrUnavailable marks every failure of the model backend.
var ErrUnavailable = errors.New("model unavailable")

// Generator produces one reply for an ordered conversation context.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChainGenerator(ctx, chatModel, cfg.Model)
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

func wrapUnavailable(err error, op string) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// requireContent rejects empty replies.
func requireContent(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", unavailable("empty model reply")
	}
	return content, nil
}

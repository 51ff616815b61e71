package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ChainGenerator runs an eino chain around a chat model.
type ChainGenerator struct {
	model string
	chain compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewChainGenerator compiles a chain that feeds the conversation into chatModel.
// name is only used in logs.
func NewChainGenerator(ctx context.Context, chatModel model.BaseChatModel, name string) (*ChainGenerator, error) {
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainGenerator{model: name, chain: runnable}, nil
}

// Generate implements Generator.
func (g *ChainGenerator) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	response, err := g.chain.Invoke(ctx, messages)
	if err != nil {
		return "", wrapUnavailable(err, "run chat chain")
	}
	if response == nil {
		return "", unavailable("chat chain returned no message")
	}

	slog.Debug("model reply generated", "provider", "ark", "model", g.model, "length", len(response.Content))
	return requireContent(response.Content)
}

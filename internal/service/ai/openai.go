package ai

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zhouzirui/catmaid/backend/internal/config"
)

// OpenAIGenerator talks to any OpenAI compatible chat completions endpoint,
// including a local Ollama server.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature *float64
}

// NewOpenAIGenerator creates a generator from cfg.
func NewOpenAIGenerator(cfg config.AIConfig) *OpenAIGenerator {
	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		// Ollama ignores the key but the client requires one.
		apiKey = "ollama"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       cfg.OpenAIModel,
		temperature: cfg.Temperature,
	}
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: toOpenAIMessages(messages),
	}
	if g.temperature != nil {
		params.Temperature = openai.Float(*g.temperature)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapUnavailable(err, "openai chat")
	}
	if len(resp.Choices) == 0 {
		return "", unavailable("openai chat returned no choices")
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("model reply generated", "provider", "openai", "model", g.model, "length", len(content))
	return requireContent(content)
}

func toOpenAIMessages(messages []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			params = append(params, openai.SystemMessage(m.Content))
		case schema.User:
			params = append(params, openai.UserMessage(m.Content))
		case schema.Assistant:
			params = append(params, openai.AssistantMessage(m.Content))
		}
	}
	return params
}

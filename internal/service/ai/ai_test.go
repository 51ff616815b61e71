package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/catmaid/backend/internal/config"
	"github.com/zhouzirui/catmaid/backend/internal/model/chat"
	"github.com/zhouzirui/catmaid/backend/internal/model/persona"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

type fakeChatModel struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.seen = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestBuildMessagesOrder(t *testing.T) {
	st := status.UserStatus{Affection: 55, Stamina: 98, Mood: 50}
	messages, err := BuildMessages(context.Background(), Conversation{
		SystemPrompt: "你是咱喵",
		History: []chat.Entry{
			{Role: chat.RoleUser, Content: "早"},
			{Role: chat.RoleAssistant, Content: "早安喵"},
		},
		Status: st,
		Max:    100,
		Query:  "你好",
	})
	if err != nil {
		t.Fatalf("BuildMessages err: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}

	wantRoles := []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.System, schema.User}
	for i, m := range messages {
		if m.Role != wantRoles[i] {
			t.Fatalf("message %d role: got %s, want %s", i, m.Role, wantRoles[i])
		}
	}
	if messages[0].Content != "你是咱喵" {
		t.Errorf("system prompt: got %q", messages[0].Content)
	}
	if !strings.Contains(messages[3].Content, "❤️好感度：55/100") || !strings.Contains(messages[3].Content, "[stamina: -2]") {
		t.Errorf("status note missing values or format: %q", messages[3].Content)
	}
	if messages[4].Content != "你好" {
		t.Errorf("query: got %q", messages[4].Content)
	}
}

func TestBuildMessagesWithoutHistory(t *testing.T) {
	messages, err := BuildMessages(context.Background(), Conversation{
		SystemPrompt: "sys",
		Max:          100,
		Query:        "hi {not a placeholder}",
	})
	if err != nil {
		t.Fatalf("BuildMessages err: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[2].Content != "hi {not a placeholder}" {
		t.Fatalf("user text must be passed through verbatim, got %q", messages[2].Content)
	}
}

func TestBuildSystemPromptForDefaultPersona(t *testing.T) {
	pm := NewPersonaPromptManager()
	def := persona.Seed()[0]
	def.Prompt = ""

	got := pm.BuildSystemPrompt(def)
	if !strings.Contains(got, "咱喵") || !strings.Contains(got, "对话规则") {
		t.Fatalf("unexpected system prompt: %q", got)
	}
}

func TestBuildSystemPromptUsesPersonaFields(t *testing.T) {
	pm := NewPersonaPromptManager()
	got := pm.BuildSystemPrompt(persona.Persona{
		ID:    "shiba",
		Name:  "小柴",
		Title: "柴犬管家",
		Tone:  "憨厚",
		Rules: []string{"句尾带汪"},
	})
	if !strings.HasPrefix(got, "你是小柴，柴犬管家。") {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "- 句尾带汪") {
		t.Fatalf("rules missing: %q", got)
	}
}

func TestChainGenerator(t *testing.T) {
	fake := &fakeChatModel{reply: "喵~ [affection: +5]"}
	gen, err := NewChainGenerator(context.Background(), fake, "test-model")
	if err != nil {
		t.Fatalf("NewChainGenerator err: %v", err)
	}

	input := []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("hi")}
	got, err := gen.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if got != "喵~ [affection: +5]" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if len(fake.seen) != 2 {
		t.Fatalf("model saw %d messages", len(fake.seen))
	}
}

func TestChainGeneratorErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeChatModel
	}{
		{"model error", &fakeChatModel{err: errors.New("connection refused")}},
		{"empty reply", &fakeChatModel{reply: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewChainGenerator(context.Background(), tt.fake, "test-model")
			if err != nil {
				t.Fatalf("NewChainGenerator err: %v", err)
			}
			_, err = gen.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestToOpenAIMessagesSkipsUnknownRoles(t *testing.T) {
	got := toOpenAIMessages([]*schema.Message{
		schema.SystemMessage("sys"),
		nil,
		schema.UserMessage("hi"),
		schema.AssistantMessage("喵", nil),
		schema.ToolMessage("{}", "call-1"),
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
}

func newCompletionServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "qwen3",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator(t *testing.T) {
	var seen map[string]any
	srv := newCompletionServer(t, "<think>hm</think>喵~", &seen)

	gen := NewOpenAIGenerator(config.AIConfig{
		Provider:      config.ProviderOpenAI,
		OpenAIBaseURL: srv.URL + "/v1",
		OpenAIModel:   "qwen3",
	})
	got, err := gen.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("hi"),
	})
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if got != "<think>hm</think>喵~" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if seen["model"] != "qwen3" {
		t.Fatalf("request model: got %v", seen["model"])
	}
	if msgs, _ := seen["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("request carried %d messages", len(msgs))
	}
}

func TestOpenAIGeneratorEmptyReply(t *testing.T) {
	srv := newCompletionServer(t, "", nil)
	gen := NewOpenAIGenerator(config.AIConfig{OpenAIBaseURL: srv.URL + "/v1", OpenAIModel: "qwen3"})

	_, err := gen.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), config.AIConfig{Provider: "bard"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

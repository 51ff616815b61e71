package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/catmaid/backend/internal/model/chat"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

var conversationTemplate = prompt.FromMessages(
	schema.FString,
	schema.SystemMessage("{system}"),
	schema.MessagesPlaceholder("history", true),
	schema.SystemMessage("{status}"),
	schema.UserMessage("{query}"),
)

// Conversation is everything the model sees for one turn.
type Conversation struct {
	SystemPrompt string
	History      []chat.Entry
	Status       status.UserStatus
	Max          int
	Query        string
}

// BuildMessages renders c in order: persona prompt, history, status note,
// user message.
func BuildMessages(ctx context.Context, c Conversation) ([]*schema.Message, error) {
	messages, err := conversationTemplate.Format(ctx, map[string]any{
		"system":  c.SystemPrompt,
		"history": HistoryMessages(c.History),
		"status":  StatusNote(c.Status, c.Max),
		"query":   c.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render conversation: %w", err)
	}
	return messages, nil
}

// StatusNote tells the model the current attributes and how to report changes.
func StatusNote(st status.UserStatus, limit int) string {
	return fmt.Sprintf("当前状态：❤️好感度：%d/%d，⚡体力值：%d/%d，😺心情值：%d/%d。"+
		"请在回复中包含状态变化，格式为 [affection: +5], [stamina: -2], [mood: +3]，并确保值合理（总和在0-%d之间）。",
		st.Affection, limit, st.Stamina, limit, st.Mood, limit, limit)
}

// HistoryMessages converts stored entries, oldest first, into model messages.
func HistoryMessages(entries []chat.Entry) []*schema.Message {
	if len(entries) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(e.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(e.Content, nil))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(e.Content))
		}
	}
	return history
}

package chat

import "time"

// Role identifies which side of the conversation produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Entry persists one side of a turn.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	TurnID    string    `json:"turnId,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

package model

import (
	"time"
)

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

// ConversationTurn is one message in a mentor conversation. Turns belong
// solely to their (UserID, TopicKey) conversation and are totally ordered
// by CreatedAt within it.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TopicKey  string    `json:"topic_key"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

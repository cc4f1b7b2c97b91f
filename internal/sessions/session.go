// Package sessions provides windowed conversation memory for Kopi.
package sessions

import (
	"fmt"
	"strings"
	"time"
)

// Turn is one user-message/bot-response pair with a sequence number.
type Turn struct {
	Number      int       `json:"turn_number"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Ts          time.Time `json:"timestamp"`
}

// Session holds the conversation state for one session identifier.
// Turns are capped at the store's window; Context survives turn eviction.
type Session struct {
	ID        string            `json:"id"`
	Turns     []Turn            `json:"turns"`
	Context   map[string]string `json:"context"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	// nextTurn is monotonically increasing regardless of eviction.
	nextTurn int
}

// Meta is the listing view of a session.
type Meta struct {
	ID        string    `json:"id"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats summarizes a session for the stats endpoint.
type Stats struct {
	ID          string    `json:"session_id"`
	TotalTurns  int       `json:"total_turns"`
	LastTurn    int       `json:"last_turn_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"last_updated"`
	ContextKeys []string  `json:"context_keys"`
}

// RenderHistory formats turns as alternating User/Assistant lines for LLM grounding.
func RenderHistory(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "User: %s\n", t.UserMessage)
		fmt.Fprintf(&sb, "Assistant: %s\n", t.BotResponse)
	}
	return strings.TrimRight(sb.String(), "\n")
}

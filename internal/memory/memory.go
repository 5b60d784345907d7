// Package memory persists per-user conversation history.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrConversationNotFound is returned when a conversation id does not
// resolve. Callers typically recover by creating a fresh conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// Metadata describes a conversation without its turns.
type Metadata struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	TurnCount      int       `json:"turn_count"`
}

// TurnMetadata is the per-turn annotation map. Intent is a fixed tag today
// (no classifier runs); the field stays for forward compatibility.
type TurnMetadata struct {
	Intent        string   `json:"intent"`
	KnowledgeUsed bool     `json:"knowledge_used"`
	Sources       []string `json:"sources,omitempty"`
	ChatType      string   `json:"chat_type,omitempty"`
}

// Turn is one (user message, assistant response) exchange. Turns are
// immutable once written and strictly append-only.
type Turn struct {
	Timestamp         time.Time    `json:"timestamp"`
	UserMessage       string       `json:"user_message"`
	AssistantResponse string       `json:"assistant_response"`
	Metadata          TurnMetadata `json:"metadata"`
}

// Store is the conversation persistence contract. Implementations must
// serialize concurrent appends to the same conversation.
type Store interface {
	// Create starts a new conversation and returns its generated id.
	Create(ctx context.Context, userID, title, convType string) (string, error)

	// GetMetadata returns conversation metadata, or ErrConversationNotFound.
	// userID, when non-empty, scopes the lookup to that owner.
	GetMetadata(ctx context.Context, conversationID, userID string) (*Metadata, error)

	// AppendTurn atomically appends a turn, keeping turn_count consistent
	// and evicting the oldest turns above the configured cap.
	AppendTurn(ctx context.Context, conversationID string, turn Turn) error

	// GetHistory returns up to maxTurns most recent turns, oldest first.
	GetHistory(ctx context.Context, conversationID, userID string, maxTurns int) ([]Turn, error)

	// ListConversations returns a user's conversations, most recently
	// updated first. convType, when non-empty, filters by type.
	ListConversations(ctx context.Context, userID string, limit int, convType string) ([]Metadata, error)

	// FindByDate returns the id of the user's earliest conversation created
	// on the given day ("YYYY-MM-DD" or "DD/MM/YYYY"), or
	// ErrConversationNotFound.
	FindByDate(ctx context.Context, userID, date string) (string, error)

	// Delete removes a conversation and its turns.
	Delete(ctx context.Context, conversationID, userID string) error

	// UpdateTitle renames a conversation.
	UpdateTitle(ctx context.Context, conversationID, userID, title string) error
}

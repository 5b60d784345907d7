package agent

import (
	"context"
	"log/slog"

	"github.com/vimathss/otto-backend/internal/llm"
)

// assembleContext loads the most recent turns of a conversation and flattens
// them into oldest-first role/content pairs. History problems degrade to an
// empty context; a chat turn must not fail because old turns are unreadable.
func (a *Agent) assembleContext(ctx context.Context, conversationID, userID string) []llm.ChatMessage {
	turns, err := a.store.GetHistory(ctx, conversationID, userID, a.opts.MaxContextMessages)
	if err != nil {
		slog.Warn("history load failed, continuing without context",
			"conversation_id", conversationID, "error", err)
		return nil
	}

	messages := make([]llm.ChatMessage, 0, len(turns)*2)
	for _, turn := range turns {
		if turn.UserMessage != "" {
			messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: turn.UserMessage})
		}
		if turn.AssistantResponse != "" {
			messages = append(messages, llm.ChatMessage{Role: llm.RoleAssistant, Content: turn.AssistantResponse})
		}
	}
	return messages
}

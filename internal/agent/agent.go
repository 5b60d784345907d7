// Package agent orchestrates conversational retrieval-augmented chat:
// conversation resolution, context assembly, retrieval gating, generation,
// and turn persistence.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vimathss/otto-backend/internal/knowledge"
	"github.com/vimathss/otto-backend/internal/llm"
	"github.com/vimathss/otto-backend/internal/memory"
)

// MainCollection is the knowledge collection consulted for every chat turn.
const MainCollection = "main"

const apologyResponse = "I'm sorry, I ran into a problem generating a response. Please try again."

// Generator produces a model response from a system prompt, prior history
// and the current prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []llm.ChatMessage, prompt string, opts llm.Options) (string, error)
}

// Searcher answers similarity queries against a named collection.
type Searcher interface {
	Search(ctx context.Context, name, query string, k int, filter map[string]string) ([]knowledge.Hit, error)
}

// Request is one incoming chat message.
type Request struct {
	UserID           string `json:"user_id"`
	Message          string `json:"message"`
	ConversationID   string `json:"conversation_id,omitempty"`
	ConversationDate string `json:"conversation_date,omitempty"`
}

// Response is the orchestrator's answer. Content is always safe to show to
// the user, including on internal failure.
type Response struct {
	Success        bool           `json:"success"`
	Content        string         `json:"content"`
	Error          string         `json:"error,omitempty"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Intent         string         `json:"intent"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Options tunes the orchestrator.
type Options struct {
	// MaxContextMessages bounds the turns loaded into the generation context.
	MaxContextMessages int
	// SearchLimit is the number of candidate chunks fetched per query.
	SearchLimit int
	// RelevanceThreshold gates knowledge usage; a hit counts only when its
	// distance is strictly below this value.
	RelevanceThreshold float64
}

// Agent wires the conversation store, knowledge index and generator into the
// chat pipeline. Concurrent Process calls share no mutable state.
type Agent struct {
	generator Generator
	searcher  Searcher
	store     memory.Store
	opts      Options
}

// New creates an Agent. Zero option fields fall back to working defaults.
func New(generator Generator, searcher Searcher, store memory.Store, opts Options) *Agent {
	if opts.MaxContextMessages <= 0 {
		opts.MaxContextMessages = 10
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = 0.7
	}
	return &Agent{
		generator: generator,
		searcher:  searcher,
		store:     store,
		opts:      opts,
	}
}

// Process runs one chat turn end to end. The returned Response always has a
// usable Content; generation failure degrades to an apology and skips
// persistence so the failed exchange never pollutes history.
func (a *Agent) Process(ctx context.Context, req Request) Response {
	conversationID, isNew, err := a.resolveConversation(ctx, req)
	if err != nil {
		slog.Error("conversation resolution failed", "user_id", req.UserID, "error", err)
		return Response{
			Success:        false,
			Content:        apologyResponse,
			Error:          "conversation resolution failed",
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Intent:         intentGeneralChat,
		}
	}

	history := a.assembleContext(ctx, conversationID, req.UserID)

	kn := a.retrieve(ctx, req.Message)

	var prompt string
	if kn.used {
		prompt = llm.BuildKnowledgePrompt(req.Message, kn.block)
	} else {
		prompt = req.Message
	}

	content, err := a.generator.Generate(ctx, llm.SystemPrompt("general"), history, prompt, llm.Options{})
	if err != nil {
		slog.Error("generation failed", "conversation_id", conversationID, "error", err)
		return Response{
			Success:        true,
			Content:        apologyResponse,
			ConversationID: conversationID,
			UserID:         req.UserID,
			Intent:         intentGeneralChat,
			Metadata:       map[string]any{"response_type": "error"},
		}
	}

	a.persistTurn(ctx, conversationID, req.Message, content, kn)

	return Response{
		Success:        true,
		Content:        content,
		ConversationID: conversationID,
		UserID:         req.UserID,
		Intent:         intentGeneralChat,
		Metadata: map[string]any{
			"knowledge_used":      kn.used,
			"sources":             kn.sources,
			"is_new_conversation": isNew,
			"response_type":       intentGeneralChat,
		},
	}
}

const intentGeneralChat = "general_chat"

// resolveConversation maps the request onto a conversation id: an existing
// id is reused, a stale one silently falls through to creation, and a date
// without an id resolves to the first conversation of that day when one
// exists. isNew reports whether a conversation was created for this turn.
func (a *Agent) resolveConversation(ctx context.Context, req Request) (id string, isNew bool, err error) {
	if req.ConversationID != "" {
		_, err := a.store.GetMetadata(ctx, req.ConversationID, req.UserID)
		if err == nil {
			return req.ConversationID, false, nil
		}
		if !errors.Is(err, memory.ErrConversationNotFound) {
			return "", false, err
		}
		slog.Info("stale conversation id, starting fresh", "conversation_id", req.ConversationID)
	} else if req.ConversationDate != "" {
		id, err := a.store.FindByDate(ctx, req.UserID, req.ConversationDate)
		if err == nil {
			return id, false, nil
		}
		if !errors.Is(err, memory.ErrConversationNotFound) {
			slog.Warn("date lookup failed, starting fresh", "date", req.ConversationDate, "error", err)
		}
	}

	id, err = a.store.Create(ctx, req.UserID, "", "chat")
	return id, true, err
}

type knowledgeResult struct {
	used    bool
	block   string
	sources []string
}

// retrieve searches the main collection and keeps only hits strictly below
// the relevance threshold. A missing collection or a search failure is a
// plain-chat turn, never an error the user sees.
func (a *Agent) retrieve(ctx context.Context, query string) knowledgeResult {
	hits, err := a.searcher.Search(ctx, MainCollection, query, a.opts.SearchLimit, nil)
	if err != nil {
		if !errors.Is(err, knowledge.ErrCollectionNotFound) {
			slog.Warn("knowledge search failed", "error", err)
		}
		return knowledgeResult{}
	}

	var lines []string
	var sources []string
	seen := make(map[string]bool)
	for _, hit := range hits {
		if hit.Distance >= a.opts.RelevanceThreshold {
			continue
		}
		lines = append(lines, "Relevant information: "+hit.Content)

		source := hit.Metadata["source"]
		if source == "" {
			source = "knowledge base"
		}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}

	if len(lines) == 0 {
		return knowledgeResult{}
	}
	slog.Debug("knowledge retrieved", "chunks", len(lines), "sources", sources)
	return knowledgeResult{
		used:    true,
		block:   strings.Join(lines, "\n\n"),
		sources: sources,
	}
}

// persistTurn appends the exchange. Failure here is soft: the response was
// already generated and must reach the user.
func (a *Agent) persistTurn(ctx context.Context, conversationID, userMessage, response string, kn knowledgeResult) {
	turn := memory.Turn{
		Timestamp:         time.Now().UTC(),
		UserMessage:       userMessage,
		AssistantResponse: response,
		Metadata: memory.TurnMetadata{
			Intent:        intentGeneralChat,
			KnowledgeUsed: kn.used,
			Sources:       kn.sources,
			ChatType:      "general",
		},
	}
	if err := a.store.AppendTurn(ctx, conversationID, turn); err != nil {
		slog.Error("turn persistence failed", "conversation_id", conversationID, "error", err)
	}
}

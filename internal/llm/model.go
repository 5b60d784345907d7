// Package llm provides generation and embedding services using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/vimathss/otto-backend/internal/config"
	"github.com/vimathss/otto-backend/internal/metrics"
)

// ChatMessage is a single turn of conversation context.
// Role is "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Generator wraps a langchaingo model for text generation.
type Generator struct {
	llm         llms.Model
	modelName   string
	temperature float64
	collector   *metrics.Collector
}

// NewGenerator creates a generation model based on configuration.
func NewGenerator(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Generator, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderGoogleAI:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY required for googleai provider")
		}
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GeminiAPIKey),
			googleai.WithDefaultModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Generator{
		llm:         model,
		modelName:   cfg.LLMModel,
		temperature: cfg.Temperature,
		collector:   collector,
	}, nil
}

// Options tunes a single generation call.
type Options struct {
	// Temperature overrides the configured default when > 0.
	Temperature float64
}

// Generate produces a response for prompt given prior conversation history
// and a system instruction. History is oldest-first.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []ChatMessage, prompt string, opts Options) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	temperature := g.temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	start := time.Now()
	response, err := g.llm.GenerateContent(ctx, messages, llms.WithTemperature(temperature))
	duration := time.Since(start)

	if g.collector != nil {
		g.collector.RecordTiming(metrics.OpLLMGenerate, duration)
	}

	if err != nil {
		slog.Warn("generation failed", "model", g.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	slog.Debug("generation complete", "model", g.modelName, "history_len", len(history), "duration_ms", duration.Milliseconds())
	return response.Choices[0].Content, nil
}

// Model returns the generation model name.
func (g *Generator) Model() string {
	return g.modelName
}

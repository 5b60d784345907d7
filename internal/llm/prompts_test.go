package llm

import (
	"strings"
	"testing"
)

func TestSystemPromptFallback(t *testing.T) {
	general := SystemPrompt("general")
	if general == "" {
		t.Fatal("general system prompt is empty")
	}
	if got := SystemPrompt("some-future-chat-type"); got != general {
		t.Errorf("unknown chat type did not fall back to the general persona")
	}
}

func TestBuildKnowledgePrompt(t *testing.T) {
	prompt := BuildKnowledgePrompt("what is photosynthesis?", "Relevant information: plants convert light.")

	if !strings.Contains(prompt, "what is photosynthesis?") {
		t.Error("prompt missing the question")
	}
	if !strings.Contains(prompt, "plants convert light") {
		t.Error("prompt missing the context")
	}
	// The fallback instruction keeps the model answering on bad retrievals.
	if !strings.Contains(prompt, "general knowledge") {
		t.Error("prompt missing the general-knowledge fallback instruction")
	}
}

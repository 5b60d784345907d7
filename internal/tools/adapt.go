package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vimathss/otto-backend/internal/llm"
)

// AdaptRequest asks for a pedagogical transformation of an existing text.
type AdaptRequest struct {
	UserID          string `json:"user_id"`
	OriginalText    string `json:"original_text"`
	AdaptationKind  string `json:"adaptation_kind"` // simplify, summarize, glossary, dyslexia, mind_map
	TeacherComments string `json:"teacher_comments"`
}

// Adaptation is the transformed material.
type Adaptation struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Per-kind task instructions. Unknown kinds get the generic fallback.
var adaptInstructions = map[string]string{
	"simplify": "Rewrite the text with simpler vocabulary and sentence structure so it is accessible " +
		"to early primary students or students with reading difficulties. Keep the central ideas but use direct language.",
	"summarize": "Create a schematic summary of the text. Identify the key concepts and organize them " +
		"into clear, hierarchical bullet points for easy review.",
	"glossary": "Analyze the text, identify complex words, technical terms or difficult concepts and " +
		"build a GLOSSARY. List each word with a simplified definition.",
	"dyslexia": "Adapt the text for students with dyslexia. Use short sentences in direct subject-verb-object " +
		"order. Avoid complex metaphors. Put the key words of each paragraph in BOLD.",
	"mind_map": "Transform the text into a text-based mind map structure (indented topics). Start from the " +
		"central theme and branch into subtopics and details.",
}

const adaptFallbackInstruction = "Adapt the text as requested by the teacher, improving clarity."

// AdaptTool rewrites teaching material for accessibility and study formats.
type AdaptTool struct {
	generator Generator
}

func NewAdaptTool(generator Generator) *AdaptTool {
	return &AdaptTool{generator: generator}
}

// Adapt transforms the text. Low temperature keeps the output faithful to
// the original material.
func (t *AdaptTool) Adapt(ctx context.Context, req AdaptRequest) (*Adaptation, error) {
	if strings.TrimSpace(req.OriginalText) == "" {
		return nil, fmt.Errorf("original text is required")
	}

	instruction, ok := adaptInstructions[req.AdaptationKind]
	if !ok {
		instruction = adaptFallbackInstruction
	}

	systemPrompt := "You are a specialist in didactics and inclusive education."

	raw, err := t.generator.Generate(ctx, systemPrompt, nil, buildAdaptPrompt(req, instruction), llm.Options{Temperature: 0.3})
	if err != nil {
		return nil, fmt.Errorf("content adaptation: %w", err)
	}

	var result Adaptation
	if err := ExtractJSON(raw, &result); err != nil {
		slog.Error("adaptation returned unparseable output", "kind", req.AdaptationKind, "error", err)
		return nil, fmt.Errorf("adaptation output not structured: %w", err)
	}
	return &result, nil
}

func buildAdaptPrompt(req AdaptRequest, instruction string) string {
	return fmt.Sprintf(`TASK:
%s

TEACHER NOTES:
%q

ORIGINAL TEXT:
"""
%s
"""

---
OUTPUT INSTRUCTIONS:
Return ONLY a valid JSON object with the structure:
{
    "title": "a suggested title for the adapted material",
    "content": "the full transformed/adapted text (use Markdown for headings, bold and lists)"
}`, instruction, req.TeacherComments, req.OriginalText)
}

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vimathss/otto-backend/internal/knowledge"
	"github.com/vimathss/otto-backend/internal/llm"
)

// EssayCriteriaCollection holds exam-specific grading criteria. The
// collection is optional; without it the review runs on model knowledge
// alone.
const EssayCriteriaCollection = "essay_criteria"

// Generator produces a model response. Satisfied by *llm.Generator.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []llm.ChatMessage, prompt string, opts llm.Options) (string, error)
}

// Searcher answers similarity queries against a named collection.
type Searcher interface {
	Search(ctx context.Context, name, query string, k int, filter map[string]string) ([]knowledge.Hit, error)
}

// EssayRequest carries one essay to review.
type EssayRequest struct {
	UserID          string `json:"user_id"`
	EssayText       string `json:"essay_text"`
	EssayType       string `json:"essay_type"` // exam model, e.g. "enem"
	EssayTitle      string `json:"essay_title"`
	StudentName     string `json:"student_name"`
	StudentClass    string `json:"student_class"`
	TeacherComments string `json:"teacher_comments"`
}

// EssayReview is the structured grading result. C1..C5 map to the five main
// criteria of the chosen exam model.
type EssayReview struct {
	Grade       string `json:"grade"`
	Overall     string `json:"overall"`
	C1          string `json:"c1"`
	C2          string `json:"c2"`
	C3          string `json:"c3"`
	C4          string `json:"c4"`
	C5          string `json:"c5"`
	Suggestions string `json:"suggestions"`
}

// EssayTool reviews student essays against official exam criteria, pulling
// criteria context from the knowledge index when available.
type EssayTool struct {
	generator Generator
	searcher  Searcher
}

func NewEssayTool(generator Generator, searcher Searcher) *EssayTool {
	return &EssayTool{generator: generator, searcher: searcher}
}

// Review grades an essay. The low temperature keeps the model analytical
// rather than creative.
func (t *EssayTool) Review(ctx context.Context, req EssayRequest) (*EssayReview, error) {
	if strings.TrimSpace(req.EssayText) == "" {
		return nil, fmt.Errorf("essay text is required")
	}
	if req.EssayType == "" {
		req.EssayType = "enem"
	}

	criteria := t.lookupCriteria(ctx, req.EssayType)

	systemPrompt := fmt.Sprintf("You are a rigorous %s essay grader. Analyze the essay and produce a detailed, constructive review.",
		strings.ToUpper(req.EssayType))

	raw, err := t.generator.Generate(ctx, systemPrompt, nil, buildEssayPrompt(req, criteria), llm.Options{Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("essay review: %w", err)
	}

	var review EssayReview
	if err := ExtractJSON(raw, &review); err != nil {
		slog.Error("essay review returned unparseable output", "error", err)
		return nil, fmt.Errorf("essay review output not structured: %w", err)
	}
	return &review, nil
}

// lookupCriteria searches the criteria collection. Absence of the collection
// is expected on fresh installs and falls back silently.
func (t *EssayTool) lookupCriteria(ctx context.Context, essayType string) string {
	if t.searcher == nil {
		return ""
	}
	hits, err := t.searcher.Search(ctx, EssayCriteriaCollection,
		"grading criteria for "+essayType+" essays", 2, nil)
	if err != nil {
		if !errors.Is(err, knowledge.ErrCollectionNotFound) {
			slog.Warn("criteria lookup failed", "essay_type", essayType, "error", err)
		}
		return ""
	}

	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		parts = append(parts, hit.Content)
	}
	return strings.Join(parts, "\n")
}

func buildEssayPrompt(req EssayRequest, criteria string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STUDENT:\nName: %s | Class: %s\nEssay title: %s\n\n",
		req.StudentName, req.StudentClass, req.EssayTitle)
	fmt.Fprintf(&b, "TEACHER NOTES:\n%q\n\n", req.TeacherComments)
	if criteria != "" {
		fmt.Fprintf(&b, "GRADING CRITERIA (reference):\n%s\n\n", criteria)
	}
	fmt.Fprintf(&b, "ESSAY TEXT:\n\"\"\"\n%s\n\"\"\"\n\n---\n\n", req.EssayText)
	fmt.Fprintf(&b, `OUTPUT INSTRUCTIONS (MANDATORY):
Review the essay above as an official %s grader.
Return ONLY a valid JSON object. Write nothing before or after it.

The JSON structure must be EXACTLY:
{
    "grade": "the final grade as a string (e.g. '840 / 1000')",
    "overall": "a paragraph summarizing the overall quality of the text",
    "c1": "detailed analysis of criterion 1 (formal writing)",
    "c2": "detailed analysis of criterion 2 (topic comprehension)",
    "c3": "detailed analysis of criterion 3 (argumentation)",
    "c4": "detailed analysis of criterion 4 (cohesion)",
    "c5": "detailed analysis of criterion 5 (proposed intervention)",
    "suggestions": "3 to 5 practical improvement points separated by newlines"
}

If the %s exam model does not use exactly five criteria, adapt the content to
cover that exam's criteria but KEEP THE JSON KEYS UNCHANGED (c1 through c5
for the main criteria).`, strings.ToUpper(req.EssayType), req.EssayType)
	return b.String()
}

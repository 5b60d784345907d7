package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vimathss/otto-backend/internal/llm"
)

// LessonPlanRequest carries the lesson parameters set by the teacher.
type LessonPlanRequest struct {
	UserID         string `json:"user_id"`
	Subject        string `json:"subject"`
	Grade          string `json:"grade"`
	Duration       string `json:"duration"`
	Topic          string `json:"topic"`
	CurriculumRefs string `json:"curriculum_refs"` // national curriculum skill codes
}

// LessonPlan is the structured pedagogical output.
type LessonPlan struct {
	Objectives         string `json:"objectives"`
	Methodology        string `json:"methodology"`
	Resources          string `json:"resources"`
	AssessmentTools    string `json:"assessment_tools"`
	AssessmentCriteria string `json:"assessment_criteria"`
}

// LessonPlanTool generates lesson objectives, methodology and assessments
// from the teacher's parameters.
type LessonPlanTool struct {
	generator Generator
}

func NewLessonPlanTool(generator Generator) *LessonPlanTool {
	return &LessonPlanTool{generator: generator}
}

func (t *LessonPlanTool) Generate(ctx context.Context, req LessonPlanRequest) (*LessonPlan, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("lesson topic is required")
	}

	systemPrompt := "You are a pedagogical coordinator specialized in national curriculum standards " +
		"and active learning methodologies. Your goal is to help teachers structure engaging, well-planned lessons."

	raw, err := t.generator.Generate(ctx, systemPrompt, nil, buildLessonPlanPrompt(req), llm.Options{Temperature: 0.4})
	if err != nil {
		return nil, fmt.Errorf("lesson plan generation: %w", err)
	}

	var plan LessonPlan
	if err := ExtractJSON(raw, &plan); err != nil {
		slog.Error("lesson plan returned unparseable output", "topic", req.Topic, "error", err)
		return nil, fmt.Errorf("lesson plan output not structured: %w", err)
	}
	return &plan, nil
}

func buildLessonPlanPrompt(req LessonPlanRequest) string {
	return fmt.Sprintf(`Create a detailed lesson plan with the following characteristics:

LESSON DATA:
- Subject: %s
- Grade/Class: %s
- Duration: %s
- Main topic: %s
- Curriculum skill codes: %s

---

OUTPUT INSTRUCTIONS (MANDATORY):
Return ONLY a valid JSON object.
The structure must be EXACTLY:

{
    "objectives": "3 to 4 clear learning objectives, each starting with an infinitive verb",
    "methodology": "a script split into numbered stages (e.g. 'Stage 1: Introduction...', 'Stage 2: Development...'), describing the activity of each stage. Do NOT put rigid time marks in the titles, only the logical sequence.",
    "resources": "list of required materials and resources",
    "assessment_tools": "how the teacher will verify learning",
    "assessment_criteria": "which specific criteria will be observed"
}

Use Markdown formatting inside the values (e.g. **bold** for emphasis, - for lists).`,
		req.Subject, req.Grade, req.Duration, req.Topic, req.CurriculumRefs)
}

// Package tools implements the single-shot teaching tools: essay review,
// lesson planning and content adaptation. Each tool builds a detailed prompt,
// forces strict-JSON output and parses it into a typed result.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON object can be recovered from
// the model output.
var ErrNoJSON = errors.New("no JSON object in model output")

// ExtractJSON recovers a JSON object from raw model output and unmarshals it
// into v. Models wrap JSON in prose or markdown fences despite instructions,
// so the strategies run in order: outermost {...} block, stripped ```json
// fences, then the raw text as-is.
func ExtractJSON(raw string, v any) error {
	candidates := make([]string, 0, 3)

	if start := strings.IndexByte(raw, '{'); start >= 0 {
		if end := strings.LastIndexByte(raw, '}'); end > start {
			candidates = append(candidates, raw[start:end+1])
		}
	}

	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	candidates = append(candidates, strings.TrimSpace(cleaned), strings.TrimSpace(raw))

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		err := json.Unmarshal([]byte(candidate), v)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, lastErr)
	}
	return ErrNoJSON
}

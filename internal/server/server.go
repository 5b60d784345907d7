// Package server exposes the chat pipeline and teaching tools over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vimathss/otto-backend/internal/agent"
	"github.com/vimathss/otto-backend/internal/metrics"
	"github.com/vimathss/otto-backend/internal/tools"
)

const maxBodySize = 1 << 20 // 1MB

// Deps carries the wired services the handlers need.
type Deps struct {
	Agent      *agent.Agent
	Essay      *tools.EssayTool
	LessonPlan *tools.LessonPlanTool
	Adapt      *tools.AdaptTool
	Collector  *metrics.Collector
}

// NewHandler builds the HTTP routing tree.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Get("/health", handleHealth)
	r.Get("/stats", handleStats(deps))
	r.Post("/chat", handleChat(deps))
	r.Post("/essay", handleEssay(deps))
	r.Post("/lesson-plan", handleLessonPlan(deps))
	r.Post("/adapt", handleAdapt(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Collector == nil {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, deps.Collector.Snapshot())
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agent.Request
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			httpError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "message is required")
			return
		}

		resp := deps.Agent.Process(r.Context(), req)
		status := http.StatusOK
		if !resp.Success {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
	}
}

// toolResponse is the common envelope for the single-shot tools.
type toolResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func handleEssay(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tools.EssayRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.EssayText) == "" {
			httpError(w, http.StatusBadRequest, "essay_text is required")
			return
		}

		review, err := deps.Essay.Review(r.Context(), req)
		if err != nil {
			toolError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolResponse{
			Success: true,
			Content: "Essay review complete.",
			UserID:  req.UserID,
			Result:  review,
		})
	}
}

func handleLessonPlan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tools.LessonPlanRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			httpError(w, http.StatusBadRequest, "topic is required")
			return
		}

		plan, err := deps.LessonPlan.Generate(r.Context(), req)
		if err != nil {
			toolError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolResponse{
			Success: true,
			Content: "Lesson plan generated.",
			UserID:  req.UserID,
			Result:  plan,
		})
	}
}

func handleAdapt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tools.AdaptRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.OriginalText) == "" {
			httpError(w, http.StatusBadRequest, "original_text is required")
			return
		}

		result, err := deps.Adapt.Adapt(r.Context(), req)
		if err != nil {
			toolError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolResponse{
			Success: true,
			UserID:  req.UserID,
			Result:  result,
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// toolError maps a tool failure to a client response without leaking
// internals; the detailed error is already logged at the tool layer.
func toolError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		httpError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	writeJSON(w, http.StatusInternalServerError, toolResponse{
		Success: false,
		Error:   "the model could not produce a structured result, please try again",
	})
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, toolResponse{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

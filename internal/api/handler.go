// Package api provides HTTP handlers for the quiz API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jdvalen/recuerdo/internal/quiz"
	"github.com/jdvalen/recuerdo/internal/rag"
)

// QuizService is the slice of the quiz service the handlers need.
type QuizService interface {
	Start(ctx context.Context, userName string, totalQuestions int) (quiz.StartResult, error)
	Answer(ctx context.Context, sessionID, answer string) (quiz.AnswerResult, error)
	Location(ctx context.Context, sessionID string) (quiz.LocationResult, error)
	ActiveSessions() int
}

// IndexStatus reports search index readiness and statistics.
type IndexStatus interface {
	Ready() bool
	Statistics() rag.Stats
}

// HealthInfo carries startup facts the health endpoint reports.
type HealthInfo struct {
	APIKeySet      bool
	CorpusMessages int
}

// Handler provides common handler utilities.
type Handler struct {
	svc    QuizService
	index  IndexStatus
	health HealthInfo
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(svc QuizService, index IndexStatus, health HealthInfo) *Handler {
	return &Handler{svc: svc, index: index, health: health}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/answer", h.Answer)
		r.Post("/get-location", h.GetLocation)
		r.Get("/stats", h.Stats)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps quiz and index errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrSessionNotFound):
		Error(w, http.StatusBadRequest, "session not found")
	case errors.Is(err, quiz.ErrQuizCompleted):
		Error(w, http.StatusBadRequest, "quiz already completed")
	case errors.Is(err, quiz.ErrNoCurrentQuestion):
		Error(w, http.StatusBadRequest, "no current question")
	case errors.Is(err, quiz.ErrNotCompleted):
		Error(w, http.StatusForbidden, "quiz not completed yet")
	case errors.Is(err, rag.ErrNotReady):
		Error(w, http.StatusServiceUnavailable, "index is still building, try again shortly")
	case errors.Is(err, quiz.ErrGeneration):
		Error(w, http.StatusBadGateway, "could not generate a question")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

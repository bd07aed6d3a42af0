package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

type startRequest struct {
	UserName       string `json:"user_name"`
	TotalQuestions int    `json:"total_questions"`
}

// Start begins a new quiz session and returns the first question.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.index.Ready() {
		Error(w, http.StatusServiceUnavailable, "index is still building, try again shortly")
		return
	}

	// An empty body starts a quiz with defaults.
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.svc.Start(r.Context(), req.UserName, req.TotalQuestions)
	if err != nil {
		slog.Error("Failed to start quiz session", "error", err)
		writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Answer    string `json:"answer"`
}

// answer returns the submitted text, accepting both the documented
// "message" field and the "answer" alias.
func (r answerRequest) answer() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Answer
}

// Answer processes one answer submission.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	answer := req.answer()
	if answer == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.svc.Answer(r.Context(), req.SessionID, answer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

type locationRequest struct {
	SessionID string `json:"session_id"`
}

// GetLocation reveals the final location for a successfully completed
// quiz.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := h.svc.Location(r.Context(), req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// Stats reports index statistics and live session counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.index.Statistics()
	JSON(w, http.StatusOK, map[string]interface{}{
		"index":           stats,
		"index_ready":     h.index.Ready(),
		"active_sessions": h.svc.ActiveSessions(),
	})
}

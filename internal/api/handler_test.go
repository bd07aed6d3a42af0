package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jdvalen/recuerdo/internal/quiz"
	"github.com/jdvalen/recuerdo/internal/rag"
)

type fakeQuizService struct {
	startResult    quiz.StartResult
	startErr       error
	answerResult   quiz.AnswerResult
	answerErr      error
	locationResult quiz.LocationResult
	locationErr    error
	active         int

	lastUserName string
	lastSession  string
	lastAnswer   string
}

func (f *fakeQuizService) Start(_ context.Context, userName string, _ int) (quiz.StartResult, error) {
	f.lastUserName = userName
	return f.startResult, f.startErr
}

func (f *fakeQuizService) Answer(_ context.Context, sessionID, answer string) (quiz.AnswerResult, error) {
	f.lastSession = sessionID
	f.lastAnswer = answer
	return f.answerResult, f.answerErr
}

func (f *fakeQuizService) Location(_ context.Context, sessionID string) (quiz.LocationResult, error) {
	f.lastSession = sessionID
	return f.locationResult, f.locationErr
}

func (f *fakeQuizService) ActiveSessions() int { return f.active }

type fakeIndex struct {
	ready bool
	stats rag.Stats
}

func (f *fakeIndex) Ready() bool           { return f.ready }
func (f *fakeIndex) Statistics() rag.Stats { return f.stats }

func newTestRouter(svc QuizService, index IndexStatus) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, index, HealthInfo{APIKeySet: true, CorpusMessages: 100}).RegisterRoutes(r)
	return r
}

func TestStartReturnsFirstQuestion(t *testing.T) {
	t.Parallel()

	svc := &fakeQuizService{startResult: quiz.StartResult{
		SessionID:       "s1",
		Question:        "¿Dónde nos conocimos?",
		CurrentQuestion: 1,
		TotalQuestions:  7,
	}}
	router := newTestRouter(svc, &fakeIndex{ready: true})

	req := httptest.NewRequest(http.MethodPost, "/api/start",
		strings.NewReader(`{"user_name": "Karem"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastUserName != "Karem" {
		t.Errorf("user name not forwarded: %q", svc.lastUserName)
	}

	var got quiz.StartResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if got.SessionID != "s1" || got.TotalQuestions != 7 {
		t.Errorf("unexpected response: %+v", got)
	}
}

func TestStartWithEmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()

	svc := &fakeQuizService{startResult: quiz.StartResult{SessionID: "s1"}}
	router := newTestRouter(svc, &fakeIndex{ready: true})

	req := httptest.NewRequest(http.MethodPost, "/api/start", strings.NewReader(""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStartRejectedWhileIndexBuilds(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeQuizService{}, &fakeIndex{ready: false})

	req := httptest.NewRequest(http.MethodPost, "/api/start", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while index builds, got %d", rec.Code)
	}
}

func TestAnswerValidation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeQuizService{}, &fakeIndex{ready: true})

	cases := []struct {
		name string
		body string
	}{
		{"missing session", `{"answer": "x"}`},
		{"missing answer", `{"session_id": "s1"}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestAnswerAcceptsMessageField(t *testing.T) {
	t.Parallel()

	svc := &fakeQuizService{answerResult: quiz.AnswerResult{IsCorrect: true}}
	router := newTestRouter(svc, &fakeIndex{ready: true})

	req := httptest.NewRequest(http.MethodPost, "/api/answer",
		strings.NewReader(`{"session_id": "s1", "message": "el parque"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastAnswer != "el parque" {
		t.Errorf("message field not forwarded as the answer: %q", svc.lastAnswer)
	}
}

func TestAnswerErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown session", quiz.ErrSessionNotFound, http.StatusBadRequest},
		{"completed quiz", quiz.ErrQuizCompleted, http.StatusBadRequest},
		{"index not ready", rag.ErrNotReady, http.StatusServiceUnavailable},
		{"generation failure", quiz.ErrGeneration, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeQuizService{answerErr: tc.err}, &fakeIndex{ready: true})
			req := httptest.NewRequest(http.MethodPost, "/api/answer",
				strings.NewReader(`{"session_id": "s1", "answer": "x"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestGetLocationGated(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeQuizService{locationErr: quiz.ErrNotCompleted}, &fakeIndex{ready: true})

	req := httptest.NewRequest(http.MethodPost, "/api/get-location",
		strings.NewReader(`{"session_id": "s1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before completion, got %d", rec.Code)
	}
}

func TestGetLocationSuccess(t *testing.T) {
	t.Parallel()

	svc := &fakeQuizService{locationResult: quiz.LocationResult{
		Latitude:  19.4326,
		Longitude: -99.1332,
		Address:   "El parque",
	}}
	router := newTestRouter(svc, &fakeIndex{ready: true})

	req := httptest.NewRequest(http.MethodPost, "/api/get-location",
		strings.NewReader(`{"session_id": "s1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got quiz.LocationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if got.Address != "El parque" {
		t.Errorf("unexpected location: %+v", got)
	}
}

func TestHealthDegradedWhileBuilding(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeQuizService{active: 2}, &fakeIndex{ready: false})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health must answer 200 while building, got %d", rec.Code)
	}
	var got healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if got.Status != "degraded" || got.IndexReady {
		t.Errorf("expected degraded health, got %+v", got)
	}
	if got.ActiveSessions != 2 {
		t.Errorf("expected 2 active sessions, got %d", got.ActiveSessions)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{ready: true, stats: rag.Stats{ChunkCount: 42, VectorCount: 42}}
	router := newTestRouter(&fakeQuizService{active: 1}, index)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Index          rag.Stats `json:"index"`
		IndexReady     bool      `json:"index_ready"`
		ActiveSessions int       `json:"active_sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if got.Index.ChunkCount != 42 || !got.IndexReady || got.ActiveSessions != 1 {
		t.Errorf("unexpected stats: %+v", got)
	}
}

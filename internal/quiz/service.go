package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdvalen/recuerdo/internal/domain"
	"github.com/jdvalen/recuerdo/internal/history"
)

var (
	// ErrSessionNotFound indicates an unknown or missing session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrQuizCompleted indicates an answer call on a finished quiz.
	ErrQuizCompleted = errors.New("quiz already completed")

	// ErrNotCompleted indicates a location request before the quiz was
	// completed successfully.
	ErrNotCompleted = errors.New("quiz not completed")

	// ErrNoCurrentQuestion indicates corrupted session state where the
	// cursor points past the asked questions.
	ErrNoCurrentQuestion = errors.New("no current question available")
)

// QuestionGenerator produces the next question for a session.
type QuestionGenerator interface {
	Generate(ctx context.Context, questionNumber int, previous []domain.Question) (domain.Question, error)
}

// AnswerArchive persists answer records. Satisfied by store.Repository.
type AnswerArchive interface {
	AppendAnswer(ctx context.Context, rec *domain.AnswerRecord) error
}

// Reveal is the final location disclosed after the quiz is won.
type Reveal struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// Options configures the quiz service.
type Options struct {
	DefaultTotalQuestions int
	MaxAttempts           int
	Reveal                Reveal
}

// Service drives quiz sessions: question delivery, answer checking,
// hints, retry/skip logic and the terminal reveal.
type Service struct {
	sessions  SessionStore
	generator QuestionGenerator
	archive   AnswerArchive
	log       history.Logger
	opts      Options

	// answerLocks serializes answer processing per session id.
	answerLocks sync.Map
}

// NewService creates the quiz service.
func NewService(sessions SessionStore, generator QuestionGenerator, archive AnswerArchive, log history.Logger, opts Options) *Service {
	if opts.DefaultTotalQuestions <= 0 {
		opts.DefaultTotalQuestions = 7
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if log == nil {
		log = history.NoopLogger{}
	}
	return &Service{
		sessions:  sessions,
		generator: generator,
		archive:   archive,
		log:       log,
		opts:      opts,
	}
}

// StartResult is the response to a quiz start.
type StartResult struct {
	SessionID       string   `json:"session_id"`
	Message         string   `json:"message"`
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	CurrentQuestion int      `json:"current_question"`
	TotalQuestions  int      `json:"total_questions"`
	AttemptsLeft    int      `json:"attempts_left"`
}

// Start creates a new session and generates its first question.
func (s *Service) Start(ctx context.Context, userName string, totalQuestions int) (StartResult, error) {
	if userName == "" {
		userName = "Mi Amor"
	}
	if totalQuestions <= 0 {
		totalQuestions = s.opts.DefaultTotalQuestions
	}

	first, err := s.generator.Generate(ctx, 1, nil)
	if err != nil {
		return StartResult{}, fmt.Errorf("generate first question: %w", err)
	}

	session := &domain.Session{
		ID:             uuid.NewString(),
		UserName:       userName,
		TotalQuestions: totalQuestions,
		Questions:      []domain.Question{first},
		MaxAttempts:    s.opts.MaxAttempts,
		StartedAt:      time.Now(),
	}
	s.sessions.Put(session)

	slog.Info("Quiz session started", "session_id", session.ID,
		"user_name", userName, "total_questions", totalQuestions)

	greeting := fmt.Sprintf(
		"¡Hola %s!\n\nPreparé algo especial para ti. Responde estas %d preguntas "+
			"sobre nuestra historia y descubre algo maravilloso al final.\n\n"+
			"Pregunta 1 de %d:\n\n%s",
		userName, totalQuestions, totalQuestions, first.Text)

	return StartResult{
		SessionID:       session.ID,
		Message:         greeting,
		Question:        first.Text,
		Options:         first.Options,
		CurrentQuestion: 1,
		TotalQuestions:  totalQuestions,
		AttemptsLeft:    session.MaxAttempts,
	}, nil
}

// AnswerResult is the response to an answer submission.
type AnswerResult struct {
	Message         string   `json:"message"`
	Options         []string `json:"options"`
	CurrentQuestion int      `json:"current_question"`
	TotalQuestions  int      `json:"total_questions"`
	CorrectCount    int      `json:"correct_answers"`
	IsCorrect       bool     `json:"is_correct"`
	Completed       bool     `json:"completed"`
	AttemptsLeft    int      `json:"attempts_left"`
	QuestionSkipped bool     `json:"question_skipped,omitempty"`
	HintGiven       bool     `json:"hint_given,omitempty"`
}

// sessionMutex returns the lock guarding one session's state.
func (s *Service) sessionMutex(sessionID string) *sync.Mutex {
	lock, _ := s.answerLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Answer processes one answer for the session. Per-session locking
// guarantees that question N is fully resolved before N+1 can be
// requested.
func (s *Service) Answer(ctx context.Context, sessionID, answer string) (AnswerResult, error) {
	mutex := s.sessionMutex(sessionID)
	mutex.Lock()
	defer mutex.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return AnswerResult{}, ErrSessionNotFound
	}
	if session.Completed {
		return AnswerResult{}, ErrQuizCompleted
	}

	question, ok := session.CurrentQuestion()
	if !ok {
		return AnswerResult{}, ErrNoCurrentQuestion
	}

	if MatchAnswer(answer, question.CorrectAnswers) {
		return s.handleCorrect(ctx, session, question, answer)
	}
	return s.handleIncorrect(ctx, session, question, answer)
}

func (s *Service) handleCorrect(ctx context.Context, session *domain.Session, question domain.Question, answer string) (AnswerResult, error) {
	attempts := session.Attempts + 1
	session.CorrectCount++
	session.Attempts = 0
	s.recordAnswer(ctx, session, question, answer, true, attempts, false)

	if session.CorrectCount >= session.TotalQuestions {
		session.Completed = true
		s.sessions.Put(session)
		slog.Info("Quiz completed", "session_id", session.ID,
			"correct", session.CorrectCount, "skipped", session.SkippedCount)

		return AnswerResult{
			Message: fmt.Sprintf(
				"%s\n\n¡FELICIDADES! Completaste el quiz con %d respuestas correctas. "+
					"Conoces muy bien nuestra historia.\n\n"+
					"Ahora descubre el lugar especial que preparé para ti...",
				question.SuccessMessage, session.CorrectCount),
			CurrentQuestion: session.CurrentIndex + 1,
			TotalQuestions:  session.TotalQuestions,
			CorrectCount:    session.CorrectCount,
			IsCorrect:       true,
			Completed:       true,
		}, nil
	}

	nextNumber := len(session.Questions) + 1
	next, err := s.generator.Generate(ctx, nextNumber, session.Questions)
	if err != nil {
		return s.endOnGenerationFailure(session, err), nil
	}

	session.AdvanceTo(next)
	s.sessions.Put(session)

	return AnswerResult{
		Message: fmt.Sprintf("%s\n\nPregunta %d de %d:\n\n%s",
			question.SuccessMessage, nextNumber, session.TotalQuestions, next.Text),
		Options:         next.Options,
		CurrentQuestion: nextNumber,
		TotalQuestions:  session.TotalQuestions,
		CorrectCount:    session.CorrectCount,
		IsCorrect:       true,
		AttemptsLeft:    session.MaxAttempts,
	}, nil
}

func (s *Service) handleIncorrect(ctx context.Context, session *domain.Session, question domain.Question, answer string) (AnswerResult, error) {
	session.Attempts++

	if session.Attempts < session.MaxAttempts {
		hint := question.HintForAttempt(session.Attempts)
		session.HintsUsed++
		s.sessions.Put(session)
		s.recordAnswer(ctx, session, question, answer, false, session.Attempts, false)

		return AnswerResult{
			Message: fmt.Sprintf("Mmm... no es eso.\n\nPista: %s\n\n¡Te quedan %d intentos!",
				hint, session.AttemptsLeft()),
			Options:         question.Options,
			CurrentQuestion: session.CurrentIndex + 1,
			TotalQuestions:  session.TotalQuestions,
			CorrectCount:    session.CorrectCount,
			AttemptsLeft:    session.AttemptsLeft(),
			HintGiven:       true,
		}, nil
	}

	// Attempts exhausted: the question is skipped and replaced.
	attempts := session.Attempts
	session.SkippedCount++
	session.Attempts = 0
	s.recordAnswer(ctx, session, question, answer, false, attempts, true)
	slog.Info("Question skipped after max attempts",
		"session_id", session.ID, "skipped", session.SkippedCount)

	if session.RemainingSlots() <= 0 {
		session.Completed = true
		s.sessions.Put(session)
		return AnswerResult{
			Message: "Has agotado todos los intentos disponibles.\n\n" +
				"No te preocupes, puedes intentarlo de nuevo cuando quieras.",
			CurrentQuestion: session.CurrentIndex + 1,
			TotalQuestions:  session.TotalQuestions,
			CorrectCount:    session.CorrectCount,
			Completed:       true,
		}, nil
	}

	nextNumber := len(session.Questions) + 1
	replacement, err := s.generator.Generate(ctx, nextNumber, session.Questions)
	if err != nil {
		return s.endOnGenerationFailure(session, err), nil
	}

	session.AdvanceTo(replacement)
	s.sessions.Put(session)

	return AnswerResult{
		Message: fmt.Sprintf("No te preocupes, probemos con otra pregunta.\n\nPregunta %d de %d:\n\n%s",
			nextNumber, session.TotalQuestions, replacement.Text),
		Options:         replacement.Options,
		CurrentQuestion: nextNumber,
		TotalQuestions:  session.TotalQuestions,
		CorrectCount:    session.CorrectCount,
		AttemptsLeft:    session.MaxAttempts,
		QuestionSkipped: true,
	}, nil
}

// endOnGenerationFailure ends the session gracefully when the next
// question cannot be produced, instead of exposing the raw failure.
func (s *Service) endOnGenerationFailure(session *domain.Session, err error) AnswerResult {
	slog.Error("Ending session on generation failure",
		"session_id", session.ID, "error", err)
	session.Completed = true
	s.sessions.Put(session)

	return AnswerResult{
		Message: fmt.Sprintf(
			"Lo siento, no pude preparar la siguiente pregunta. "+
				"Terminamos aquí con %d respuestas correctas; inténtalo de nuevo más tarde.",
			session.CorrectCount),
		CurrentQuestion: session.CurrentIndex + 1,
		TotalQuestions:  session.TotalQuestions,
		CorrectCount:    session.CorrectCount,
		Completed:       true,
	}
}

func (s *Service) recordAnswer(ctx context.Context, session *domain.Session, question domain.Question, answer string, correct bool, attempts int, skipped bool) {
	now := time.Now()
	s.log.Log(history.Event{
		SessionID: session.ID,
		UserName:  session.UserName,
		Question:  question.Text,
		Answer:    answer,
		Correct:   correct,
		Attempts:  attempts,
		Skipped:   skipped,
		Timestamp: now,
	})

	if s.archive == nil {
		return
	}
	rec := &domain.AnswerRecord{
		SessionID: session.ID,
		Question:  question.Text,
		Answer:    answer,
		Correct:   correct,
		Attempts:  attempts,
		Skipped:   skipped,
		CreatedAt: now,
	}
	if err := s.archive.AppendAnswer(ctx, rec); err != nil {
		slog.Warn("Failed to archive answer", "session_id", session.ID, "error", err)
	}
}

// LocationResult is the final reveal.
type LocationResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Message   string  `json:"message"`
}

// Location reveals the final location. It is only callable once the
// quiz has been completed with every question answered correctly. The
// session lock is held so the completion check never races an in-flight
// answer.
func (s *Service) Location(_ context.Context, sessionID string) (LocationResult, error) {
	mutex := s.sessionMutex(sessionID)
	mutex.Lock()
	defer mutex.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return LocationResult{}, ErrSessionNotFound
	}
	if !session.Succeeded() {
		return LocationResult{}, ErrNotCompleted
	}

	return LocationResult{
		Latitude:  s.opts.Reveal.Latitude,
		Longitude: s.opts.Reveal.Longitude,
		Address:   s.opts.Reveal.Address,
		Message: "¡Lo lograste! Conoces muy bien nuestra historia. " +
			"Ahora ven a este lugar... tengo algo importante que preguntarte.",
	}, nil
}

// ActiveSessions returns the number of live sessions.
func (s *Service) ActiveSessions() int {
	return s.sessions.Len()
}

// CleanupExpired removes sessions older than the TTL and their answer
// locks, keeping the in-memory maps bounded.
func (s *Service) CleanupExpired(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	removed := s.sessions.DeleteOlderThan(cutoff)
	for _, id := range removed {
		s.answerLocks.Delete(id)
	}
	if len(removed) > 0 {
		slog.Info("Expired quiz sessions removed", "count", len(removed))
	}
	return len(removed)
}

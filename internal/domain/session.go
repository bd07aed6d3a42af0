package domain

import (
	"time"
)

// Session holds the mutable state of one quiz attempt. Sessions live in
// memory only; losing them on restart is acceptable.
//
// Invariants maintained by the quiz service:
//   - CurrentIndex <= len(Questions)
//   - CorrectCount+SkippedCount <= TotalQuestions once Completed
//   - Attempts resets to 0 on a correct answer or question replacement
type Session struct {
	ID             string     `json:"session_id"`
	UserName       string     `json:"user_name"`
	TotalQuestions int        `json:"total_questions"`
	Questions      []Question `json:"questions_asked"`
	CurrentIndex   int        `json:"current_index"`
	CorrectCount   int        `json:"correct_count"`
	SkippedCount   int        `json:"skipped_count"`
	Attempts       int        `json:"attempts_on_current"`
	MaxAttempts    int        `json:"max_attempts"`
	HintsUsed      int        `json:"hints_used"`
	Completed      bool       `json:"completed"`
	StartedAt      time.Time  `json:"started_at"`
}

// CurrentQuestion returns the question awaiting an answer.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// AttemptsLeft returns how many attempts remain on the current question.
func (s *Session) AttemptsLeft() int {
	left := s.MaxAttempts - s.Attempts
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSlots returns how many questions can still be resolved before
// the quiz must end, counting both correct answers and skips.
func (s *Session) RemainingSlots() int {
	return s.TotalQuestions - (s.CorrectCount + s.SkippedCount)
}

// Succeeded reports whether the quiz finished with every question
// answered correctly, which is what gates the location reveal.
func (s *Session) Succeeded() bool {
	return s.Completed && s.CorrectCount >= s.TotalQuestions
}

// AdvanceTo appends the next question and moves the cursor to it,
// resetting the attempt counter.
func (s *Session) AdvanceTo(q Question) {
	s.Questions = append(s.Questions, q)
	s.CurrentIndex = len(s.Questions) - 1
	s.Attempts = 0
}

// AnswerRecord is one archived answer event, persisted for audit only.
type AnswerRecord struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Correct   bool      `json:"correct"`
	Attempts  int       `json:"attempts"`
	Skipped   bool      `json:"skipped"`
	CreatedAt time.Time `json:"created_at"`
}

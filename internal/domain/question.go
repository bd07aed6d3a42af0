package domain

// Difficulty grades how hard a generated question is expected to be.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the Difficulty is a known value.
func (d Difficulty) IsValid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Question is one generated quiz question. Questions are immutable once
// created and owned by the session that asked them.
type Question struct {
	Text           string     `json:"question"`
	Options        []string   `json:"options"`
	CorrectAnswers []string   `json:"correct_answers"`
	Hints          []string   `json:"hints"`
	SuccessMessage string     `json:"success_message"`
	Category       string     `json:"category"`
	Difficulty     Difficulty `json:"difficulty"`
	DataSource     string     `json:"data_source"`
}

// HintForAttempt returns the hint to reveal on the given 1-indexed
// failed attempt, falling back to a generic filler when the authored
// hints run out. Hint ordering (progressively more revealing) is a
// content-authoring contract, not enforced here.
func (q Question) HintForAttempt(attempt int) string {
	if attempt >= 1 && attempt <= len(q.Hints) {
		return q.Hints[attempt-1]
	}
	return "Piensa en nuestros momentos especiales..."
}

// OverlapsOptions returns the options this question shares with another.
func (q Question) OverlapsOptions(other Question) []string {
	seen := make(map[string]struct{}, len(other.Options))
	for _, o := range other.Options {
		seen[o] = struct{}{}
	}
	var overlap []string
	for _, o := range q.Options {
		if _, ok := seen[o]; ok {
			overlap = append(overlap, o)
		}
	}
	return overlap
}

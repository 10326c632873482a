package testbank

// Test is the content-pipeline-owned unit learners submit against. The
// engine only ever reads it and bumps TotalAttempts inside the submission
// transaction.
type Test struct {
	ID            string `json:"id"`
	Slug          string `json:"slug"`
	Language      string `json:"language"`
	Topic         string `json:"topic,omitempty"`
	Title         string `json:"title,omitempty"`
	Difficulty    int    `json:"difficulty"`
	TotalAttempts int    `json:"total_attempts"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     int64  `json:"created_at"`
}

// Question is immutable once its test is published. Position is the stable
// ordering key that fixes the question order in every attempt record.
type Question struct {
	ID            string   `json:"id"`
	TestID        string   `json:"-"`
	Position      int      `json:"position"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	CorrectAnswer string   `json:"answer,omitempty"`
}

// StripAnswers blanks the canonical answers for learner-facing responses.
func StripAnswers(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].CorrectAnswer = ""
	}
	return out
}

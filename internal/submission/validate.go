package submission

import (
	"github.com/lingualoop/lingualoop-core/internal/testbank"
)

// Response is one submitted (question, answer) pair.
type Response struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"selected_answer"`
}

// QuestionResult records the outcome for one canonical question.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Submitted  string `json:"selected_answer"`
	Correct    string `json:"correct_answer"`
	IsCorrect  bool   `json:"is_correct"`
}

// Validate scores a response set against the canonical question set.
//
// One result is produced per canonical question, in the questions' stable
// order; submitted items that match no question are ignored. A skipped
// question scores as an empty answer. Duplicate question ids in the input
// are resolved last-wins. Comparison is exact, case-sensitive string
// equality on the canonical answer.
//
// A nil response payload is rejected; an empty (non-nil) set is a valid
// all-skipped submission. Pure: no I/O.
func Validate(questions []testbank.Question, responses []Response) (score int, results []QuestionResult, err error) {
	if len(questions) == 0 {
		return 0, nil, &ValidationError{Reason: "test has no questions"}
	}
	if responses == nil {
		return 0, nil, &ValidationError{Reason: "no responses provided"}
	}

	submitted := make(map[string]string, len(responses))
	for _, r := range responses {
		if r.QuestionID == "" {
			return 0, nil, &ValidationError{Reason: "response with empty question_id"}
		}
		submitted[r.QuestionID] = r.Answer
	}

	results = make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		ans := submitted[q.ID]
		correct := ans == q.CorrectAnswer
		if correct {
			score++
		}
		results = append(results, QuestionResult{
			QuestionID: q.ID,
			Submitted:  ans,
			Correct:    q.CorrectAnswer,
			IsCorrect:  correct,
		})
	}
	return score, results, nil
}

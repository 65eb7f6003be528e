package service

import (
	"math"

	"github.com/decode-labs/decode-api/internal/models"
)

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Score        int  `json:"score"`
	Passed       bool `json:"passed"`
	CorrectCount int  `json:"correct_count"`
	TotalCount   int  `json:"total_count"`
}

// GradeQuiz scores a set of answers against the quiz questions. The score is
// the percentage of correct answers rounded half up. A question with no
// submitted answer, an out-of-range option index, or a selected option that
// is not the correct one counts as incorrect. An empty question set grades
// to zero.
func GradeQuiz(questions []models.QuizQuestion, answers models.AnswerMap, passingScore int) GradeResult {
	result := GradeResult{TotalCount: len(questions)}
	if result.TotalCount == 0 {
		result.Passed = passingScore <= 0
		return result
	}

	for _, q := range questions {
		idx, ok := answers[q.ID]
		if !ok || idx < 0 || idx >= len(q.Options) {
			continue
		}
		if q.Options[idx].IsCorrect {
			result.CorrectCount++
		}
	}

	result.Score = int(math.Floor(float64(result.CorrectCount)*100/float64(result.TotalCount) + 0.5))
	result.Passed = result.Score >= passingScore
	return result
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/decode-labs/decode-api/internal/models"
)

func question(id string, correctIndex, optionCount int) models.QuizQuestion {
	opts := make(models.QuizOptions, optionCount)
	for i := range opts {
		opts[i] = models.QuizOption{Text: "option", IsCorrect: i == correctIndex}
	}
	return models.QuizQuestion{ID: id, Options: opts}
}

func TestGradeQuizAllCorrect(t *testing.T) {
	questions := []models.QuizQuestion{
		question("q1", 0, 4),
		question("q2", 2, 4),
	}
	result := GradeQuiz(questions, models.AnswerMap{"q1": 0, "q2": 2}, 70)
	assert.Equal(t, 100, result.Score)
	assert.True(t, result.Passed)
	assert.Equal(t, 2, result.CorrectCount)
	assert.Equal(t, 2, result.TotalCount)
}

func TestGradeQuizRoundsHalfUp(t *testing.T) {
	// 1 of 3 correct is 33.33 -> 33; 2 of 3 is 66.67 -> 67.
	questions := []models.QuizQuestion{
		question("q1", 0, 2),
		question("q2", 0, 2),
		question("q3", 0, 2),
	}

	result := GradeQuiz(questions, models.AnswerMap{"q1": 0, "q2": 1, "q3": 1}, 70)
	assert.Equal(t, 33, result.Score)

	result = GradeQuiz(questions, models.AnswerMap{"q1": 0, "q2": 0, "q3": 1}, 70)
	assert.Equal(t, 67, result.Score)
	assert.False(t, result.Passed)

	// 1 of 8 correct is 12.5 -> 13.
	eight := make([]models.QuizQuestion, 8)
	for i := range eight {
		eight[i] = question(string(rune('a'+i)), 0, 2)
	}
	result = GradeQuiz(eight, models.AnswerMap{"a": 0}, 70)
	assert.Equal(t, 13, result.Score)
}

func TestGradeQuizPassAtExactThreshold(t *testing.T) {
	questions := []models.QuizQuestion{
		question("q1", 0, 2),
		question("q2", 0, 2),
		question("q3", 0, 2),
		question("q4", 0, 2),
	}
	result := GradeQuiz(questions, models.AnswerMap{"q1": 0, "q2": 0, "q3": 0, "q4": 1}, 75)
	assert.Equal(t, 75, result.Score)
	assert.True(t, result.Passed)
}

func TestGradeQuizMissingAndOutOfRangeAnswers(t *testing.T) {
	questions := []models.QuizQuestion{
		question("q1", 0, 2),
		question("q2", 1, 2),
	}
	result := GradeQuiz(questions, models.AnswerMap{"q1": 5, "unknown": 0}, 50)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.CorrectCount)
	assert.False(t, result.Passed)

	result = GradeQuiz(questions, models.AnswerMap{"q1": -1, "q2": 1}, 50)
	assert.Equal(t, 50, result.Score)
	assert.True(t, result.Passed)
}

func TestGradeQuizEmptyQuestionSet(t *testing.T) {
	result := GradeQuiz(nil, models.AnswerMap{}, 70)
	assert.Equal(t, 0, result.Score)
	assert.False(t, result.Passed)

	result = GradeQuiz(nil, nil, 0)
	assert.Equal(t, 0, result.Score)
	assert.True(t, result.Passed)
}

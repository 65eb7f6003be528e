package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/decode-labs/decode-api/internal/models"
)

func newQuizRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestQuizRepositoryFindByCourse(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "passing_score", "created_at"}).
		AddRow("quiz-1", "course-1", "Final Assessment", 70, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, title, passing_score, created_at FROM quizzes WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	quiz, err := repo.FindByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, 70, quiz.PassingScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryListQuestionsScansOptions(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	options := []byte(`[{"text":"A","is_correct":false},{"text":"B","is_correct":true}]`)
	rows := sqlmock.NewRows([]string{"id", "quiz_id", "question", "options", "order_index", "created_at"}).
		AddRow("q1", "quiz-1", "Pick one", options, 0, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index ASC")).
		WithArgs("quiz-1").
		WillReturnRows(rows)

	questions, err := repo.ListQuestions(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Len(t, questions[0].Options, 2)
	require.True(t, questions[0].Options[1].IsCorrect)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryInsertAttempt(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_attempts (id, user_id, quiz_id, score, passed, answers, created_at)")).
		WithArgs(sqlmock.AnyArg(), "user-1", "quiz-1", 80, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	attempt := &models.QuizAttempt{
		UserID:  "user-1",
		QuizID:  "quiz-1",
		Score:   80,
		Passed:  true,
		Answers: models.AnswerMap{"q1": 1},
	}
	err := repo.InsertAttempt(context.Background(), db, attempt)
	require.NoError(t, err)
	require.NotEmpty(t, attempt.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

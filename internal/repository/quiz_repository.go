package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// QuizRepository provides quiz content and attempt history.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// FindByCourse returns the quiz attached to a course.
func (r *QuizRepository) FindByCourse(ctx context.Context, courseID string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, title, passing_score, created_at FROM quizzes WHERE course_id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, courseID); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListQuestions returns the ordered questions with options.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	const query = `SELECT id, quiz_id, question, options, order_index, created_at
        FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index ASC`
	var questions []models.QuizQuestion
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	return questions, nil
}

// InsertAttempt records a graded submission. Attempts are append-only.
func (r *QuizRepository) InsertAttempt(ctx context.Context, ext sqlx.ExtContext, attempt *models.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quiz_attempts (id, user_id, quiz_id, score, passed, answers, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := ext.ExecContext(ctx, query,
		attempt.ID, attempt.UserID, attempt.QuizID, attempt.Score, attempt.Passed, attempt.Answers, attempt.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a user's attempts for a quiz, newest first.
func (r *QuizRepository) ListAttempts(ctx context.Context, userID, quizID string) ([]models.QuizAttempt, error) {
	const query = `SELECT id, user_id, quiz_id, score, passed, answers, created_at
        FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2 ORDER BY created_at DESC`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, userID, quizID); err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	return attempts, nil
}

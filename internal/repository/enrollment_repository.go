package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentInProgress
	}
	const query = `INSERT INTO enrollments (id, user_id, course_id, status, progress, enrolled_at, completed_at)
        VALUES (:id, :user_id, :course_id, :status, :progress, :enrolled_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByUserAndCourse returns the enrollment for a (user, course) pair.
func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, progress, enrolled_at, completed_at
        FROM enrollments WHERE user_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindForUpdate loads the enrollment with a row lock so racing completion
// submissions serialize on it.
func (r *EnrollmentRepository) FindForUpdate(ctx context.Context, ext sqlx.ExtContext, userID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, progress, enrolled_at, completed_at
        FROM enrollments WHERE user_id = $1 AND course_id = $2 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, ext, &enrollment, query, userID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// MarkCompleted flips status to completed. The WHERE guard on status makes
// the transition single-shot even if two transactions interleave.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, ext sqlx.ExtContext, id string, completedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, progress = 100, completed_at = $3
        WHERE id = $1 AND status = $4`
	res, err := ext.ExecContext(ctx, query, id, models.EnrollmentCompleted, completedAt, models.EnrollmentInProgress)
	if err != nil {
		return false, fmt.Errorf("mark enrollment completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark enrollment completed: %w", err)
	}
	return affected == 1, nil
}

// UpdateProgress stores the non-scoring progress percentage.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	const query = `UPDATE enrollments SET progress = $2 WHERE id = $1 AND status = $3`
	if _, err := r.db.ExecContext(ctx, query, id, progress, models.EnrollmentInProgress); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// ListByUser returns the user's enrollments with course context.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.user_id, e.course_id, e.status, e.progress, e.enrolled_at, e.completed_at,
        c.title AS course_title, c.points_reward
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.user_id = $1
        ORDER BY e.enrolled_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, userID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

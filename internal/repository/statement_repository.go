package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// StatementRepository tracks points statement export jobs.
type StatementRepository struct {
	db *sqlx.DB
}

// NewStatementRepository constructs the repository.
func NewStatementRepository(db *sqlx.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// Create inserts a pending statement row.
func (r *StatementRepository) Create(ctx context.Context, s *models.PointsStatement) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.StatementPending
	}
	if s.RequestedAt.IsZero() {
		s.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO points_statements (id, user_id, status, file_path, error, requested_at, completed_at)
        VALUES (:id, :user_id, :status, :file_path, :error, :requested_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	return nil
}

// FindByID fetches a single statement.
func (r *StatementRepository) FindByID(ctx context.Context, id string) (*models.PointsStatement, error) {
	const query = `SELECT id, user_id, status, file_path, error, requested_at, completed_at
        FROM points_statements WHERE id = $1`
	var s models.PointsStatement
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkReady records a finished export and its file path.
func (r *StatementRepository) MarkReady(ctx context.Context, id, filePath string) error {
	const query = `UPDATE points_statements SET status = $2, file_path = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.StatementReady, filePath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark statement ready: %w", err)
	}
	return nil
}

// MarkFailed records an export failure.
func (r *StatementRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE points_statements SET status = $2, error = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.StatementFailed, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark statement failed: %w", err)
	}
	return nil
}

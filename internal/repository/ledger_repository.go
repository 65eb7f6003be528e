package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// LedgerRepository handles the append-only points_transactions table and the
// materialized balance on users. Balance-affecting writes take an
// sqlx.ExtContext so callers can run them inside one transaction.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts a ledger entry. Entries are immutable once written.
func (r *LedgerRepository) Append(ctx context.Context, ext sqlx.ExtContext, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO points_transactions (id, user_id, amount, kind, reference_type, reference_id, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := ext.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Amount, entry.Kind,
		entry.ReferenceType, entry.ReferenceID, entry.Description, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// SumByUser recomputes the balance from the ledger. Run inside the same
// transaction as the decision that depends on it.
func (r *LedgerRepository) SumByUser(ctx context.Context, ext sqlx.ExtContext, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM points_transactions WHERE user_id = $1`
	var sum int
	if err := sqlx.GetContext(ctx, ext, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

// AdjustBalance applies a signed delta to the cached total_points.
func (r *LedgerRepository) AdjustBalance(ctx context.Context, ext sqlx.ExtContext, userID string, delta int) error {
	const query = `UPDATE users SET total_points = total_points + $2, updated_at = $3 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, userID, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	return nil
}

// LockBalance reads the cached balance with a row lock, serializing
// concurrent balance decisions for the same user.
func (r *LedgerRepository) LockBalance(ctx context.Context, ext sqlx.ExtContext, userID string) (int, error) {
	const query = `SELECT total_points FROM users WHERE id = $1 FOR UPDATE`
	var balance int
	if err := sqlx.GetContext(ctx, ext, &balance, query, userID); err != nil {
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return balance, nil
}

// History returns a page of a user's ledger entries, newest first.
func (r *LedgerRepository) History(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error) {
	base := `FROM points_transactions WHERE user_id = $1`
	args := []interface{}{filter.UserID}
	if filter.Kind != "" {
		base += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, filter.Kind)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, user_id, amount, kind, reference_type, reference_id, description, created_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return entries, total, nil
}

// AllByUser returns the full ledger oldest first, for statement rendering.
func (r *LedgerRepository) AllByUser(ctx context.Context, userID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, user_id, amount, kind, reference_type, reference_id, description, created_at
        FROM points_transactions WHERE user_id = $1 ORDER BY created_at ASC`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return entries, nil
}

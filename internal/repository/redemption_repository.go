package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// RedemptionRepository handles reward redemption records.
type RedemptionRepository struct {
	db *sqlx.DB
}

// NewRedemptionRepository constructs the repository.
func NewRedemptionRepository(db *sqlx.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// Create inserts a redemption. Called inside the same transaction as the
// debit ledger entry.
func (r *RedemptionRepository) Create(ctx context.Context, ext sqlx.ExtContext, redemption *models.Redemption) error {
	now := time.Now().UTC()
	if redemption.ID == "" {
		redemption.ID = uuid.NewString()
	}
	if redemption.Status == "" {
		redemption.Status = models.RedemptionPending
	}
	redemption.CreatedAt = now
	redemption.UpdatedAt = now
	const query = `INSERT INTO redemptions (id, user_id, item_name, points_cost, status, shipping_address, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := ext.ExecContext(ctx, query,
		redemption.ID, redemption.UserID, redemption.ItemName, redemption.PointsCost,
		redemption.Status, redemption.ShippingAddress, redemption.Notes, redemption.CreatedAt, redemption.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create redemption: %w", err)
	}
	return nil
}

// FindByID returns a redemption by identifier.
func (r *RedemptionRepository) FindByID(ctx context.Context, id string) (*models.Redemption, error) {
	const query = `SELECT id, user_id, item_name, points_cost, status, shipping_address, notes, created_at, updated_at
        FROM redemptions WHERE id = $1`
	var redemption models.Redemption
	if err := r.db.GetContext(ctx, &redemption, query, id); err != nil {
		return nil, err
	}
	return &redemption, nil
}

// FindForUpdate loads a redemption with a row lock for status transitions.
func (r *RedemptionRepository) FindForUpdate(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Redemption, error) {
	const query = `SELECT id, user_id, item_name, points_cost, status, shipping_address, notes, created_at, updated_at
        FROM redemptions WHERE id = $1 FOR UPDATE`
	var redemption models.Redemption
	if err := sqlx.GetContext(ctx, ext, &redemption, query, id); err != nil {
		return nil, err
	}
	return &redemption, nil
}

// UpdateStatus transitions a redemption.
func (r *RedemptionRepository) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id string, status models.RedemptionStatus, notes *string) error {
	const query = `UPDATE redemptions SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, id, status, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update redemption status: %w", err)
	}
	return nil
}

// List returns redemptions matching the filter with a total count.
func (r *RedemptionRepository) List(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, int, error) {
	base := `FROM redemptions WHERE 1=1`
	var args []interface{}
	if filter.UserID != "" {
		base += fmt.Sprintf(" AND user_id = $%d", len(args)+1)
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT id, user_id, item_name, points_cost, status, shipping_address, notes, created_at, updated_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var redemptions []models.Redemption
	if err := r.db.SelectContext(ctx, &redemptions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list redemptions: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count redemptions: %w", err)
	}
	return redemptions, total, nil
}

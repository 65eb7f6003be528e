package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// ReferralRepository handles candidate referrals.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository constructs the repository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create persists a new referral.
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	now := time.Now().UTC()
	if referral.ID == "" {
		referral.ID = uuid.NewString()
	}
	if referral.Status == "" {
		referral.Status = models.ReferralSubmitted
	}
	referral.CreatedAt = now
	referral.UpdatedAt = now
	const query = `INSERT INTO referrals (id, referrer_id, candidate_name, candidate_email, candidate_phone, job_title, company_name, status, referral_code, points_awarded, notes, created_at, updated_at)
        VALUES (:id, :referrer_id, :candidate_name, :candidate_email, :candidate_phone, :job_title, :company_name, :status, :referral_code, :points_awarded, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, referral); err != nil {
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

// FindByID returns a referral by identifier.
func (r *ReferralRepository) FindByID(ctx context.Context, id string) (*models.Referral, error) {
	const query = `SELECT id, referrer_id, candidate_name, candidate_email, candidate_phone, job_title, company_name, status, referral_code, points_awarded, notes, created_at, updated_at
        FROM referrals WHERE id = $1`
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, id); err != nil {
		return nil, err
	}
	return &referral, nil
}

// FindByCode resolves a referral code to its referral.
func (r *ReferralRepository) FindByCode(ctx context.Context, code string) (*models.Referral, error) {
	const query = `SELECT id, referrer_id, candidate_name, candidate_email, candidate_phone, job_title, company_name, status, referral_code, points_awarded, notes, created_at, updated_at
        FROM referrals WHERE referral_code = $1`
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, code); err != nil {
		return nil, err
	}
	return &referral, nil
}

// FindForUpdate loads a referral with a row lock for the hire transition.
func (r *ReferralRepository) FindForUpdate(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Referral, error) {
	const query = `SELECT id, referrer_id, candidate_name, candidate_email, candidate_phone, job_title, company_name, status, referral_code, points_awarded, notes, created_at, updated_at
        FROM referrals WHERE id = $1 FOR UPDATE`
	var referral models.Referral
	if err := sqlx.GetContext(ctx, ext, &referral, query, id); err != nil {
		return nil, err
	}
	return &referral, nil
}

// UpdateStatus transitions a referral, recording any awarded bonus.
func (r *ReferralRepository) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id string, status models.ReferralStatus, pointsAwarded int) error {
	const query = `UPDATE referrals SET status = $2, points_awarded = $3, updated_at = $4 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, id, status, pointsAwarded, time.Now().UTC()); err != nil {
		return fmt.Errorf("update referral status: %w", err)
	}
	return nil
}

// ListByReferrer returns a user's referrals, newest first.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	const query = `SELECT id, referrer_id, candidate_name, candidate_email, candidate_phone, job_title, company_name, status, referral_code, points_awarded, notes, created_at, updated_at
        FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`
	var referrals []models.Referral
	if err := r.db.SelectContext(ctx, &referrals, query, referrerID); err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return referrals, nil
}

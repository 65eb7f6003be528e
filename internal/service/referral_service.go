package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/pkg/database"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type referralStore interface {
	Create(ctx context.Context, referral *models.Referral) error
	FindByID(ctx context.Context, id string) (*models.Referral, error)
	FindForUpdate(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Referral, error)
	UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id string, status models.ReferralStatus, pointsAwarded int) error
	ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error)
}

type referralNotifier interface {
	ReferralHired(ctx context.Context, userID, candidateName string, points int)
}

type referralLedgerStore interface {
	Append(ctx context.Context, ext sqlx.ExtContext, entry *models.LedgerEntry) error
	AdjustBalance(ctx context.Context, ext sqlx.ExtContext, userID string, delta int) error
}

// CreateReferralRequest submits a candidate.
type CreateReferralRequest struct {
	CandidateName  string  `json:"candidate_name" validate:"required,min=2,max=200"`
	CandidateEmail string  `json:"candidate_email" validate:"required,email"`
	CandidatePhone *string `json:"candidate_phone" validate:"omitempty,max=30"`
	JobTitle       *string `json:"job_title" validate:"omitempty,max=200"`
	CompanyName    *string `json:"company_name" validate:"omitempty,max=200"`
	Notes          *string `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateReferralRequest transitions a referral through hiring.
type UpdateReferralRequest struct {
	Status models.ReferralStatus `json:"status" validate:"required,oneof=interviewing hired rejected"`
}

// ReferralService manages candidate referrals and the hire bonus.
type ReferralService struct {
	referrals   referralStore
	ledger      referralLedgerStore
	tx          database.TxRunner
	notifier    referralNotifier
	leaderboard leaderboardInvalidator
	hireBonus   int
	maxRetries  int
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReferralService constructs the service with defaults.
func NewReferralService(
	referrals referralStore,
	ledger referralLedgerStore,
	tx database.TxRunner,
	notifier referralNotifier,
	leaderboard leaderboardInvalidator,
	hireBonus, maxRetries int,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReferralService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		referrals:   referrals,
		ledger:      ledger,
		tx:          tx,
		notifier:    notifier,
		leaderboard: leaderboard,
		hireBonus:   hireBonus,
		maxRetries:  maxRetries,
		validator:   validate,
		logger:      logger,
	}
}

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() (string, error) {
	var sb strings.Builder
	sb.WriteString("REF-")
	for i := 0; i < 8; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		sb.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Submit creates a referral with a fresh REF- code.
func (s *ReferralService) Submit(ctx context.Context, referrerID string, req CreateReferralRequest) (*models.Referral, error) {
	req.CandidateEmail = strings.ToLower(strings.TrimSpace(req.CandidateEmail))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	code, err := generateReferralCode()
	if err != nil {
		return nil, err
	}
	referral := &models.Referral{
		ReferrerID:     referrerID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
		CandidatePhone: req.CandidatePhone,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		Status:         models.ReferralSubmitted,
		ReferralCode:   &code,
		Notes:          req.Notes,
	}
	if err := s.referrals.Create(ctx, referral); err != nil {
		return nil, fmt.Errorf("create referral: %w", err)
	}

	s.logger.Info("referral submitted",
		zap.String("referral_id", referral.ID),
		zap.String("referrer_id", referrerID))
	return referral, nil
}

// ListMine returns the caller's referrals.
func (s *ReferralService) ListMine(ctx context.Context, referrerID string) ([]models.Referral, error) {
	return s.referrals.ListByReferrer(ctx, referrerID)
}

// referralTransitions encodes the hiring state machine.
var referralTransitions = map[models.ReferralStatus][]models.ReferralStatus{
	models.ReferralSubmitted:    {models.ReferralInterviewing, models.ReferralHired, models.ReferralRejected},
	models.ReferralInterviewing: {models.ReferralHired, models.ReferralRejected},
}

func referralTransitionAllowed(from, to models.ReferralStatus) bool {
	for _, next := range referralTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves a referral through the hiring pipeline. Marking a
// referral hired credits the referrer exactly once, in the same transaction
// as the status change.
func (s *ReferralService) UpdateStatus(ctx context.Context, id string, req UpdateReferralRequest) (*models.Referral, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		txErr := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			referral, err := s.referrals.FindForUpdate(ctx, tx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.ErrNotFound
				}
				return fmt.Errorf("lock referral: %w", err)
			}
			if !referralTransitionAllowed(referral.Status, req.Status) {
				return appErrors.Clone(appErrors.ErrConflict,
					fmt.Sprintf("cannot transition referral from %s to %s", referral.Status, req.Status))
			}

			awarded := referral.PointsAwarded
			if req.Status == models.ReferralHired && referral.PointsAwarded == 0 && s.hireBonus > 0 {
				awarded = s.hireBonus
				desc := fmt.Sprintf("Referral hired: %s", referral.CandidateName)
				refType := "referral"
				entry := &models.LedgerEntry{
					UserID:        referral.ReferrerID,
					Amount:        awarded,
					Kind:          models.LedgerReferral,
					ReferenceType: &refType,
					ReferenceID:   &referral.ID,
					Description:   &desc,
				}
				if err := s.ledger.Append(ctx, tx, entry); err != nil {
					return fmt.Errorf("append hire bonus: %w", err)
				}
				if err := s.ledger.AdjustBalance(ctx, tx, referral.ReferrerID, awarded); err != nil {
					return fmt.Errorf("adjust balance: %w", err)
				}
			}

			if err := s.referrals.UpdateStatus(ctx, tx, id, req.Status, awarded); err != nil {
				return fmt.Errorf("update referral status: %w", err)
			}
			return nil
		})

		if txErr == nil {
			updated, err := s.referrals.FindByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("load referral %s: %w", id, err)
			}
			if updated.Status == models.ReferralHired && updated.PointsAwarded > 0 {
				if s.leaderboard != nil {
					s.leaderboard.InvalidateLeaderboard(ctx)
				}
				if s.notifier != nil {
					s.notifier.ReferralHired(ctx, updated.ReferrerID, updated.CandidateName, updated.PointsAwarded)
				}
			}
			return updated, nil
		}

		var appErr *appErrors.Error
		if errors.As(txErr, &appErr) {
			return nil, txErr
		}
		if !database.IsConflict(txErr) {
			return nil, txErr
		}
		lastErr = txErr
		s.logger.Warn("referral status transaction conflict, retrying",
			zap.String("referral_id", id),
			zap.Int("attempt", i+1))
	}

	su := appErrors.ErrStoreUnavailable
	return nil, appErrors.Wrap(lastErr, su.Code, su.Status, su.Message)
}

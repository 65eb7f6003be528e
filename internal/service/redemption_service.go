package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/pkg/database"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type redemptionStore interface {
	Create(ctx context.Context, ext sqlx.ExtContext, redemption *models.Redemption) error
	FindByID(ctx context.Context, id string) (*models.Redemption, error)
	FindForUpdate(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Redemption, error)
	UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id string, status models.RedemptionStatus, notes *string) error
	List(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, int, error)
}

type redemptionNotifier interface {
	RedemptionUpdated(ctx context.Context, userID, itemName string, status models.RedemptionStatus)
}

type redemptionLedgerStore interface {
	Append(ctx context.Context, ext sqlx.ExtContext, entry *models.LedgerEntry) error
	SumByUser(ctx context.Context, ext sqlx.ExtContext, userID string) (int, error)
	AdjustBalance(ctx context.Context, ext sqlx.ExtContext, userID string, delta int) error
	LockBalance(ctx context.Context, ext sqlx.ExtContext, userID string) (int, error)
}

// RedeemRequest is the payload for claiming a reward.
type RedeemRequest struct {
	ItemName        string  `json:"item_name" validate:"required,min=2,max=200"`
	PointsCost      int     `json:"points_cost" validate:"required,gt=0"`
	ShippingAddress *string `json:"shipping_address" validate:"omitempty,max=500"`
}

// UpdateRedemptionRequest transitions a redemption's fulfilment status.
type UpdateRedemptionRequest struct {
	Status models.RedemptionStatus `json:"status" validate:"required,oneof=approved shipped rejected"`
	Notes  *string                 `json:"notes" validate:"omitempty,max=1000"`
}

// RedemptionService handles reward claims against the points ledger.
type RedemptionService struct {
	redemptions redemptionStore
	ledger      redemptionLedgerStore
	tx          database.TxRunner
	notifier    redemptionNotifier
	metrics     *MetricsService
	leaderboard leaderboardInvalidator
	maxRetries  int
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRedemptionService constructs the service with defaults.
func NewRedemptionService(
	redemptions redemptionStore,
	ledger redemptionLedgerStore,
	tx database.TxRunner,
	notifier redemptionNotifier,
	metrics *MetricsService,
	leaderboard leaderboardInvalidator,
	maxRetries int,
	validate *validator.Validate,
	logger *zap.Logger,
) *RedemptionService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedemptionService{
		redemptions: redemptions,
		ledger:      ledger,
		tx:          tx,
		notifier:    notifier,
		metrics:     metrics,
		leaderboard: leaderboard,
		maxRetries:  maxRetries,
		validator:   validate,
		logger:      logger,
	}
}

// Redeem claims a reward. The balance is locked and recomputed from the
// ledger inside the transaction before the debit is written; a balance below
// the cost aborts with no writes at all.
func (s *RedemptionService) Redeem(ctx context.Context, userID string, req RedeemRequest) (*models.Redemption, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	var redemption *models.Redemption
	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		redemption = &models.Redemption{
			UserID:          userID,
			ItemName:        req.ItemName,
			PointsCost:      req.PointsCost,
			Status:          models.RedemptionPending,
			ShippingAddress: req.ShippingAddress,
		}

		txErr := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := s.ledger.LockBalance(ctx, tx, userID); err != nil {
				return fmt.Errorf("lock balance: %w", err)
			}
			balance, err := s.ledger.SumByUser(ctx, tx, userID)
			if err != nil {
				return fmt.Errorf("compute balance: %w", err)
			}
			if balance < req.PointsCost {
				return appErrors.ErrInsufficientPoints
			}

			if err := s.redemptions.Create(ctx, tx, redemption); err != nil {
				return fmt.Errorf("create redemption: %w", err)
			}

			desc := fmt.Sprintf("Redeemed: %s", req.ItemName)
			refType := "redemption"
			entry := &models.LedgerEntry{
				UserID:        userID,
				Amount:        -req.PointsCost,
				Kind:          models.LedgerRedeemed,
				ReferenceType: &refType,
				ReferenceID:   &redemption.ID,
				Description:   &desc,
			}
			if err := s.ledger.Append(ctx, tx, entry); err != nil {
				return fmt.Errorf("append ledger entry: %w", err)
			}
			if err := s.ledger.AdjustBalance(ctx, tx, userID, -req.PointsCost); err != nil {
				return fmt.Errorf("adjust balance: %w", err)
			}
			return nil
		})

		if txErr == nil {
			s.metrics.RecordRedemption(req.PointsCost)
			s.metrics.RecordTxRetries(i)
			if s.leaderboard != nil {
				s.leaderboard.InvalidateLeaderboard(ctx)
			}
			s.logger.Info("redemption created",
				zap.String("user_id", userID),
				zap.String("redemption_id", redemption.ID),
				zap.Int("points_cost", req.PointsCost))
			return redemption, nil
		}

		var appErr *appErrors.Error
		if errors.As(txErr, &appErr) {
			return nil, txErr
		}
		if !database.IsConflict(txErr) {
			return nil, txErr
		}
		lastErr = txErr
		s.metrics.RecordTxConflict("redemption")
		s.logger.Warn("redemption transaction conflict, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", i+1))
	}

	s.logger.Error("redemption transaction exhausted retries",
		zap.String("user_id", userID),
		zap.Error(lastErr))
	su := appErrors.ErrStoreUnavailable
	return nil, appErrors.Wrap(lastErr, su.Code, su.Status, su.Message)
}

// GetRedemption returns a single redemption, restricted to its owner unless
// the caller is an admin.
func (s *RedemptionService) GetRedemption(ctx context.Context, id, userID string, isAdmin bool) (*models.Redemption, error) {
	redemption, err := s.redemptions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load redemption %s: %w", id, err)
	}
	if !isAdmin && redemption.UserID != userID {
		return nil, appErrors.ErrForbidden
	}
	return redemption, nil
}

// ListRedemptions pages through redemptions, scoped to the user unless the
// caller is an admin listing all.
func (s *RedemptionService) ListRedemptions(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.redemptions.List(ctx, filter)
}

// validTransitions encodes the fulfilment state machine.
var validTransitions = map[models.RedemptionStatus][]models.RedemptionStatus{
	models.RedemptionPending:  {models.RedemptionApproved, models.RedemptionRejected},
	models.RedemptionApproved: {models.RedemptionShipped, models.RedemptionRejected},
}

func transitionAllowed(from, to models.RedemptionStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus transitions a redemption through the fulfilment state machine.
// Rejecting refunds the points in the same transaction as the status change.
func (s *RedemptionService) UpdateStatus(ctx context.Context, id string, req UpdateRedemptionRequest) (*models.Redemption, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		txErr := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			redemption, err := s.redemptions.FindForUpdate(ctx, tx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.ErrNotFound
				}
				return fmt.Errorf("lock redemption: %w", err)
			}
			if !transitionAllowed(redemption.Status, req.Status) {
				return appErrors.Clone(appErrors.ErrConflict,
					fmt.Sprintf("cannot transition redemption from %s to %s", redemption.Status, req.Status))
			}

			if err := s.redemptions.UpdateStatus(ctx, tx, id, req.Status, req.Notes); err != nil {
				return fmt.Errorf("update redemption status: %w", err)
			}

			if req.Status == models.RedemptionRejected {
				desc := fmt.Sprintf("Refund for rejected redemption: %s", redemption.ItemName)
				refType := "redemption"
				entry := &models.LedgerEntry{
					UserID:        redemption.UserID,
					Amount:        redemption.PointsCost,
					Kind:          models.LedgerBonus,
					ReferenceType: &refType,
					ReferenceID:   &redemption.ID,
					Description:   &desc,
				}
				if err := s.ledger.Append(ctx, tx, entry); err != nil {
					return fmt.Errorf("append refund entry: %w", err)
				}
				if err := s.ledger.AdjustBalance(ctx, tx, redemption.UserID, redemption.PointsCost); err != nil {
					return fmt.Errorf("adjust balance: %w", err)
				}
			}
			return nil
		})

		if txErr == nil {
			updated, err := s.redemptions.FindByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("load redemption %s: %w", id, err)
			}
			if s.leaderboard != nil && updated.Status == models.RedemptionRejected {
				s.leaderboard.InvalidateLeaderboard(ctx)
			}
			if s.notifier != nil {
				s.notifier.RedemptionUpdated(ctx, updated.UserID, updated.ItemName, updated.Status)
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
		s.metrics.RecordTxConflict("redemption_status")
		s.logger.Warn("redemption status transaction conflict, retrying",
			zap.String("redemption_id", id),
			zap.Int("attempt", i+1))
	}

	su := appErrors.ErrStoreUnavailable
	return nil, appErrors.Wrap(lastErr, su.Code, su.Status, su.Message)
}

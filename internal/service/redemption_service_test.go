package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type mockRedemptionStore struct {
	items map[string]*models.Redemption
}

func (m *mockRedemptionStore) Create(ctx context.Context, ext sqlx.ExtContext, redemption *models.Redemption) error {
	if m.items == nil {
		m.items = make(map[string]*models.Redemption)
	}
	if redemption.ID == "" {
		redemption.ID = fmt.Sprintf("red-%d", len(m.items)+1)
	}
	redemption.CreatedAt = time.Now()
	cp := *redemption
	m.items[redemption.ID] = &cp
	return nil
}

func (m *mockRedemptionStore) FindByID(ctx context.Context, id string) (*models.Redemption, error) {
	if r, ok := m.items[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRedemptionStore) FindForUpdate(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Redemption, error) {
	return m.FindByID(ctx, id)
}

func (m *mockRedemptionStore) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id string, status models.RedemptionStatus, notes *string) error {
	r, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	if notes != nil {
		r.Notes = notes
	}
	return nil
}

func (m *mockRedemptionStore) List(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, int, error) {
	out := make([]models.Redemption, 0, len(m.items))
	for _, r := range m.items {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func TestRedeemDebitsLedger(t *testing.T) {
	store := &mockRedemptionStore{}
	ledger := &mockLedger{sum: 500}
	leaderboard := &mockLeaderboard{}
	svc := NewRedemptionService(store, ledger, &mockTxRunner{}, nil, nil, leaderboard, 3, nil, zap.NewNop())

	redemption, err := svc.Redeem(context.Background(), "user-1", RedeemRequest{
		ItemName:   "Mechanical Keyboard",
		PointsCost: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionPending, redemption.Status)
	assert.NotEmpty(t, redemption.ID)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, -300, ledger.entries[0].Amount)
	assert.Equal(t, models.LedgerRedeemed, ledger.entries[0].Kind)
	assert.Equal(t, -300, ledger.balances["user-1"])
	assert.Equal(t, 1, leaderboard.invalidations)
}

func TestRedeemInsufficientPointsWritesNothing(t *testing.T) {
	store := &mockRedemptionStore{}
	ledger := &mockLedger{sum: 100}
	leaderboard := &mockLeaderboard{}
	svc := NewRedemptionService(store, ledger, &mockTxRunner{}, nil, nil, leaderboard, 3, nil, zap.NewNop())

	_, err := svc.Redeem(context.Background(), "user-1", RedeemRequest{
		ItemName:   "Mechanical Keyboard",
		PointsCost: 300,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInsufficientPoints.Code, appErr.Code)
	assert.Empty(t, store.items)
	assert.Empty(t, ledger.entries)
	assert.Empty(t, ledger.balances)
	assert.Equal(t, 0, leaderboard.invalidations)
}

func TestRedeemValidatesRequest(t *testing.T) {
	svc := NewRedemptionService(&mockRedemptionStore{}, &mockLedger{}, &mockTxRunner{}, nil, nil, nil, 3, nil, zap.NewNop())

	_, err := svc.Redeem(context.Background(), "user-1", RedeemRequest{ItemName: "x", PointsCost: 0})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUpdateStatusRejectRefunds(t *testing.T) {
	store := &mockRedemptionStore{items: map[string]*models.Redemption{
		"red-1": {ID: "red-1", UserID: "user-1", ItemName: "Keyboard", PointsCost: 300, Status: models.RedemptionPending},
	}}
	ledger := &mockLedger{}
	notifier := &mockNotifier{}
	leaderboard := &mockLeaderboard{}
	svc := NewRedemptionService(store, ledger, &mockTxRunner{}, notifier, nil, leaderboard, 3, nil, zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "red-1", UpdateRedemptionRequest{Status: models.RedemptionRejected})
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionRejected, updated.Status)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, 300, ledger.entries[0].Amount)
	assert.Equal(t, models.LedgerBonus, ledger.entries[0].Kind)
	assert.Equal(t, 300, ledger.balances["user-1"])
	assert.Equal(t, []models.RedemptionStatus{models.RedemptionRejected}, notifier.redemptionStatuses)
	assert.Equal(t, 1, leaderboard.invalidations)
}

func TestUpdateStatusApproveThenShip(t *testing.T) {
	store := &mockRedemptionStore{items: map[string]*models.Redemption{
		"red-1": {ID: "red-1", UserID: "user-1", ItemName: "Keyboard", PointsCost: 300, Status: models.RedemptionPending},
	}}
	ledger := &mockLedger{}
	svc := NewRedemptionService(store, ledger, &mockTxRunner{}, nil, nil, nil, 3, nil, zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "red-1", UpdateRedemptionRequest{Status: models.RedemptionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionApproved, updated.Status)

	updated, err = svc.UpdateStatus(context.Background(), "red-1", UpdateRedemptionRequest{Status: models.RedemptionShipped})
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionShipped, updated.Status)
	assert.Empty(t, ledger.entries)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	store := &mockRedemptionStore{items: map[string]*models.Redemption{
		"red-1": {ID: "red-1", UserID: "user-1", ItemName: "Keyboard", PointsCost: 300, Status: models.RedemptionShipped},
	}}
	svc := NewRedemptionService(store, &mockLedger{}, &mockTxRunner{}, nil, nil, nil, 3, nil, zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "red-1", UpdateRedemptionRequest{Status: models.RedemptionApproved})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, models.RedemptionShipped, store.items["red-1"].Status)
}

func TestGetRedemptionOwnership(t *testing.T) {
	store := &mockRedemptionStore{items: map[string]*models.Redemption{
		"red-1": {ID: "red-1", UserID: "user-1", ItemName: "Keyboard", PointsCost: 300, Status: models.RedemptionPending},
	}}
	svc := NewRedemptionService(store, &mockLedger{}, &mockTxRunner{}, nil, nil, nil, 3, nil, zap.NewNop())

	_, err := svc.GetRedemption(context.Background(), "red-1", "someone-else", false)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	got, err := svc.GetRedemption(context.Background(), "red-1", "someone-else", true)
	require.NoError(t, err)
	assert.Equal(t, "red-1", got.ID)
}

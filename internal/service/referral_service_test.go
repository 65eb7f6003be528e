package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type mockReferralStore struct {
	items map[string]*models.Referral
}

func (m *mockReferralStore) Create(ctx context.Context, referral *models.Referral) error {
	if m.items == nil {
		m.items = make(map[string]*models.Referral)
	}
	if referral.ID == "" {
		referral.ID = fmt.Sprintf("ref-%d", len(m.items)+1)
	}
	referral.CreatedAt = time.Now()
	cp := *referral
	m.items[referral.ID] = &cp
	return nil
}

func (m *mockReferralStore) FindByID(ctx context.Context, id string) (*models.Referral, error) {
	if r, ok := m.items[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReferralStore) FindForUpdate(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Referral, error) {
	return m.FindByID(ctx, id)
}

func (m *mockReferralStore) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id string, status models.ReferralStatus, pointsAwarded int) error {
	r, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	r.PointsAwarded = pointsAwarded
	return nil
}

func (m *mockReferralStore) ListByReferrer(ctx context.Context, referrerID string) ([]models.Referral, error) {
	out := make([]models.Referral, 0, len(m.items))
	for _, r := range m.items {
		if r.ReferrerID == referrerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestReferralSubmit(t *testing.T) {
	store := &mockReferralStore{}
	svc := NewReferralService(store, &mockLedger{}, &mockTxRunner{}, nil, nil, 500, 3, nil, zap.NewNop())

	referral, err := svc.Submit(context.Background(), "user-1", CreateReferralRequest{
		CandidateName:  "Jane Candidate",
		CandidateEmail: " Jane@Example.COM ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralSubmitted, referral.Status)
	assert.Equal(t, "jane@example.com", referral.CandidateEmail)
	require.NotNil(t, referral.ReferralCode)
	assert.True(t, strings.HasPrefix(*referral.ReferralCode, "REF-"))
	assert.Len(t, *referral.ReferralCode, 12)
	assert.Equal(t, 0, referral.PointsAwarded)
}

func TestReferralSubmitRejectsBadEmail(t *testing.T) {
	store := &mockReferralStore{}
	svc := NewReferralService(store, &mockLedger{}, &mockTxRunner{}, nil, nil, 500, 3, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "user-1", CreateReferralRequest{
		CandidateName:  "Jane Candidate",
		CandidateEmail: "not-an-email",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, store.items)
}

func TestReferralHireAwardsBonusOnce(t *testing.T) {
	store := &mockReferralStore{items: map[string]*models.Referral{
		"ref-1": {ID: "ref-1", ReferrerID: "user-1", CandidateName: "Jane", Status: models.ReferralSubmitted},
	}}
	ledger := &mockLedger{}
	notifier := &mockNotifier{}
	leaderboard := &mockLeaderboard{}
	svc := NewReferralService(store, ledger, &mockTxRunner{}, notifier, leaderboard, 500, 3, nil, zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "ref-1", UpdateReferralRequest{Status: models.ReferralHired})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralHired, updated.Status)
	assert.Equal(t, 500, updated.PointsAwarded)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, 500, ledger.entries[0].Amount)
	assert.Equal(t, models.LedgerReferral, ledger.entries[0].Kind)
	assert.Equal(t, 500, ledger.balances["user-1"])
	assert.Equal(t, []string{"user-1"}, notifier.referralHires)
	assert.Equal(t, 1, leaderboard.invalidations)
}

func TestReferralInterviewingKeepsAward(t *testing.T) {
	store := &mockReferralStore{items: map[string]*models.Referral{
		"ref-1": {ID: "ref-1", ReferrerID: "user-1", CandidateName: "Jane", Status: models.ReferralSubmitted},
	}}
	ledger := &mockLedger{}
	svc := NewReferralService(store, ledger, &mockTxRunner{}, nil, nil, 500, 3, nil, zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "ref-1", UpdateReferralRequest{Status: models.ReferralInterviewing})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralInterviewing, updated.Status)
	assert.Equal(t, 0, updated.PointsAwarded)
	assert.Empty(t, ledger.entries)

	updated, err = svc.UpdateStatus(context.Background(), "ref-1", UpdateReferralRequest{Status: models.ReferralHired})
	require.NoError(t, err)
	assert.Equal(t, 500, updated.PointsAwarded)
	assert.Len(t, ledger.entries, 1)
}

func TestReferralHiredIsTerminal(t *testing.T) {
	store := &mockReferralStore{items: map[string]*models.Referral{
		"ref-1": {ID: "ref-1", ReferrerID: "user-1", CandidateName: "Jane", Status: models.ReferralHired, PointsAwarded: 500},
	}}
	ledger := &mockLedger{}
	svc := NewReferralService(store, ledger, &mockTxRunner{}, nil, nil, 500, 3, nil, zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "ref-1", UpdateReferralRequest{Status: models.ReferralRejected})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, ledger.entries)
}

func TestReferralZeroBonusSkipsLedger(t *testing.T) {
	store := &mockReferralStore{items: map[string]*models.Referral{
		"ref-1": {ID: "ref-1", ReferrerID: "user-1", CandidateName: "Jane", Status: models.ReferralSubmitted},
	}}
	ledger := &mockLedger{}
	svc := NewReferralService(store, ledger, &mockTxRunner{}, nil, nil, 0, 3, nil, zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "ref-1", UpdateReferralRequest{Status: models.ReferralHired})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralHired, updated.Status)
	assert.Equal(t, 0, updated.PointsAwarded)
	assert.Empty(t, ledger.entries)
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type mockPointsUserStore struct {
	user             *models.User
	leaderboard      []models.LeaderboardEntry
	leaderboardCalls int
}

func (m *mockPointsUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *m.user
	return &cp, nil
}

func (m *mockPointsUserStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.leaderboardCalls++
	return m.leaderboard, nil
}

type mockLedgerReader struct {
	entries []models.LedgerEntry
	filter  models.LedgerFilter
}

func (m *mockLedgerReader) History(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error) {
	m.filter = filter
	return m.entries, len(m.entries), nil
}

type mockCache struct {
	data    map[string][]byte
	sets    int
	deletes int
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.sets++
	return nil
}

func (m *mockCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			m.deletes++
		}
	}
	return nil
}

func TestPointsBalance(t *testing.T) {
	users := &mockPointsUserStore{user: &models.User{ID: "user-1", TotalPoints: 420}}
	svc := NewPointsService(users, &mockLedgerReader{}, nil, 20, time.Minute, zap.NewNop())

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 420, balance.TotalPoints)

	_, err = svc.Balance(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestPointsHistoryClampsPaging(t *testing.T) {
	ledger := &mockLedgerReader{}
	svc := NewPointsService(&mockPointsUserStore{}, ledger, nil, 20, time.Minute, zap.NewNop())

	_, _, err := svc.History(context.Background(), models.LedgerFilter{UserID: "user-1", Page: -1, PageSize: 9000})
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.filter.Page)
	assert.Equal(t, 20, ledger.filter.PageSize)
}

func TestLeaderboardCacheAside(t *testing.T) {
	users := &mockPointsUserStore{leaderboard: []models.LeaderboardEntry{
		{Rank: 1, UserID: "user-1", FullName: "Top Earner", TotalPoints: 9000},
	}}
	cache := &mockCache{}
	svc := NewPointsService(users, &mockLedgerReader{}, cache, 20, time.Minute, zap.NewNop())

	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, users.leaderboardCalls)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache.
	entries, err = svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, 1, users.leaderboardCalls)
}

func TestInvalidateLeaderboardDropsCache(t *testing.T) {
	users := &mockPointsUserStore{leaderboard: []models.LeaderboardEntry{
		{Rank: 1, UserID: "user-1", FullName: "Top Earner", TotalPoints: 9000},
	}}
	cache := &mockCache{}
	svc := NewPointsService(users, &mockLedgerReader{}, cache, 20, time.Minute, zap.NewNop())

	_, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, users.leaderboardCalls)

	svc.InvalidateLeaderboard(context.Background())
	assert.Equal(t, 1, cache.deletes)

	// The next read misses the cache and recomputes the ranking.
	_, err = svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, users.leaderboardCalls)
}

func TestLeaderboardWithoutCache(t *testing.T) {
	users := &mockPointsUserStore{leaderboard: []models.LeaderboardEntry{
		{Rank: 1, UserID: "user-1", FullName: "Top Earner", TotalPoints: 9000},
	}}
	svc := NewPointsService(users, &mockLedgerReader{}, nil, 20, time.Minute, zap.NewNop())

	entries, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

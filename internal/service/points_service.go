package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

const leaderboardCacheKey = "leaderboard:top"

type pointsUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type pointsLedgerReader interface {
	History(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error)
}

type pointsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// leaderboardInvalidator is consumed by the services that move points, so a
// balance change never serves a stale ranking for the rest of the TTL.
// PointsService implements it.
type leaderboardInvalidator interface {
	InvalidateLeaderboard(ctx context.Context)
}

// BalanceResponse is the user's current points position.
type BalanceResponse struct {
	UserID      string `json:"user_id"`
	TotalPoints int    `json:"total_points"`
}

// PointsService serves balances, ledger history and the leaderboard.
type PointsService struct {
	users           pointsUserStore
	ledger          pointsLedgerReader
	cache           pointsCache
	leaderboardSize int
	cacheTTL        time.Duration
	logger          *zap.Logger
}

// NewPointsService constructs the service with defaults.
func NewPointsService(users pointsUserStore, ledger pointsLedgerReader, cache pointsCache, leaderboardSize int, cacheTTL time.Duration, logger *zap.Logger) *PointsService {
	if leaderboardSize <= 0 {
		leaderboardSize = 20
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsService{
		users:           users,
		ledger:          ledger,
		cache:           cache,
		leaderboardSize: leaderboardSize,
		cacheTTL:        cacheTTL,
		logger:          logger,
	}
}

// Balance returns the user's materialized points balance.
func (s *PointsService) Balance(ctx context.Context, userID string) (*BalanceResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return &BalanceResponse{UserID: user.ID, TotalPoints: user.TotalPoints}, nil
}

// History pages through a user's ledger, newest first.
func (s *PointsService) History(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.ledger.History(ctx, filter)
}

// Leaderboard returns the top earners, served from cache when warm.
func (s *PointsService) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	if s.cache != nil {
		var cached []models.LeaderboardEntry
		if err := s.cache.Get(ctx, leaderboardCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("leaderboard cache read failed", zap.Error(err))
		}
	}

	entries, err := s.users.Leaderboard(ctx, s.leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, leaderboardCacheKey, entries, s.cacheTTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

// InvalidateLeaderboard drops the cached ranking so the next read recomputes
// it from the store. Failures only cost freshness, never correctness.
func (s *PointsService) InvalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, leaderboardCacheKey); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
}

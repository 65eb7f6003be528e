package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/decode-labs/decode-api/internal/models"
)

func newRedemptionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRedemptionRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newRedemptionRepoMock(t)
	defer cleanup()
	repo := NewRedemptionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO redemptions (id, user_id, item_name, points_cost, status, shipping_address, notes, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "user-1", "Keyboard", 300, models.RedemptionPending, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	redemption := &models.Redemption{UserID: "user-1", ItemName: "Keyboard", PointsCost: 300}
	err := repo.Create(context.Background(), db, redemption)
	require.NoError(t, err)
	require.NotEmpty(t, redemption.ID)
	require.Equal(t, models.RedemptionPending, redemption.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryFindForUpdate(t *testing.T) {
	db, mock, cleanup := newRedemptionRepoMock(t)
	defer cleanup()
	repo := NewRedemptionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "item_name", "points_cost", "status", "shipping_address", "notes", "created_at", "updated_at"}).
		AddRow("red-1", "user-1", "Keyboard", 300, models.RedemptionPending, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM redemptions WHERE id = $1 FOR UPDATE")).
		WithArgs("red-1").
		WillReturnRows(rows)

	redemption, err := repo.FindForUpdate(context.Background(), db, "red-1")
	require.NoError(t, err)
	require.Equal(t, models.RedemptionPending, redemption.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryUpdateStatusKeepsNotes(t *testing.T) {
	db, mock, cleanup := newRedemptionRepoMock(t)
	defer cleanup()
	repo := NewRedemptionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE redemptions SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1")).
		WithArgs("red-1", models.RedemptionApproved, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), db, "red-1", models.RedemptionApproved, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryListFiltersByUserAndStatus(t *testing.T) {
	db, mock, cleanup := newRedemptionRepoMock(t)
	defer cleanup()
	repo := NewRedemptionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "item_name", "points_cost", "status", "shipping_address", "notes", "created_at", "updated_at"}).
		AddRow("red-1", "user-1", "Keyboard", 300, models.RedemptionPending, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM redemptions WHERE 1=1 AND user_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("user-1", models.RedemptionPending).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM redemptions WHERE 1=1 AND user_id = $1 AND status = $2")).
		WithArgs("user-1", models.RedemptionPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	redemptions, total, err := repo.List(context.Background(), models.RedemptionFilter{UserID: "user-1", Status: models.RedemptionPending})
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

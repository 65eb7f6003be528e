package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/decode-labs/decode-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindForUpdate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "progress", "enrolled_at", "completed_at"}).
		AddRow("enr-1", "user-1", "course-1", models.EnrollmentInProgress, 40, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, course_id, status, progress, enrolled_at, completed_at")).
		WithArgs("user-1", "course-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindForUpdate(context.Background(), db, "user-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.Equal(t, models.EnrollmentInProgress, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindForUpdateNotEnrolled(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("user-1", "course-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindForUpdate(context.Background(), db, "user-1", "course-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkCompleted(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, progress = 100, completed_at = $3")).
		WithArgs("enr-1", models.EnrollmentCompleted, completedAt, models.EnrollmentInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := repo.MarkCompleted(context.Background(), db, "enr-1", completedAt)
	require.NoError(t, err)
	require.True(t, flipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkCompletedAlreadyCompleted(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, progress = 100, completed_at = $3")).
		WithArgs("enr-1", models.EnrollmentCompleted, completedAt, models.EnrollmentInProgress).
		WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err := repo.MarkCompleted(context.Background(), db, "enr-1", completedAt)
	require.NoError(t, err)
	require.False(t, flipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "progress", "enrolled_at", "completed_at", "course_title", "points_reward"}).
		AddRow("enr-1", "user-1", "course-1", models.EnrollmentCompleted, 100, time.Now(), time.Now(), "Go Basics", 100)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN courses c ON c.id = e.course_id")).
		WithArgs("user-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, "Go Basics", enrollments[0].CourseTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}

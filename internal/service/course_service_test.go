package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type mockCatalogStore struct {
	courses map[string]*models.Course
	modules []models.CourseModule
}

func (m *mockCatalogStore) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCatalogStore) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalogStore) ListModules(ctx context.Context, courseID string) ([]models.CourseModule, error) {
	return m.modules, nil
}

type mockCourseEnrollmentStore struct {
	enrollments map[string]*models.Enrollment
	progress    map[string]int
}

func enrollmentKey(userID, courseID string) string {
	return userID + "/" + courseID
}

func (m *mockCourseEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]*models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", len(m.enrollments)+1)
	}
	cp := *enrollment
	m.enrollments[enrollmentKey(enrollment.UserID, enrollment.CourseID)] = &cp
	return nil
}

func (m *mockCourseEnrollmentStore) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[enrollmentKey(userID, courseID)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseEnrollmentStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	if m.progress == nil {
		m.progress = make(map[string]int)
	}
	m.progress[id] = progress
	return nil
}

func (m *mockCourseEnrollmentStore) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func catalogFixture() (*mockCatalogStore, *mockQuizStore, *mockCourseEnrollmentStore) {
	catalog := &mockCatalogStore{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Go Basics", IsPublished: true, PointsReward: 100},
		"course-2": {ID: "course-2", Title: "Draft Course", IsPublished: false},
	}}
	quizzes := &mockQuizStore{
		quiz: &models.Quiz{ID: "quiz-1", CourseID: "course-1", Title: "Final", PassingScore: 70},
		questions: []models.QuizQuestion{
			question("q1", 1, 3),
		},
	}
	return catalog, quizzes, &mockCourseEnrollmentStore{}
}

func TestCourseEnrollAndReEnroll(t *testing.T) {
	catalog, quizzes, enrollments := catalogFixture()
	svc := NewCourseService(catalog, quizzes, enrollments, zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), "user-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentInProgress, enrollment.Status)

	again, err := svc.Enroll(context.Background(), "user-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, enrollment.ID, again.ID)
	assert.Len(t, enrollments.enrollments, 1)
}

func TestCourseEnrollUnpublished(t *testing.T) {
	catalog, quizzes, enrollments := catalogFixture()
	svc := NewCourseService(catalog, quizzes, enrollments, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "user-1", "course-2")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseGetQuizRequiresEnrollment(t *testing.T) {
	catalog, quizzes, enrollments := catalogFixture()
	svc := NewCourseService(catalog, quizzes, enrollments, zap.NewNop())

	_, err := svc.GetQuiz(context.Background(), "course-1", "user-1")
	assert.ErrorIs(t, err, appErrors.ErrNotEnrolled)

	_, err = svc.Enroll(context.Background(), "user-1", "course-1")
	require.NoError(t, err)

	view, err := svc.GetQuiz(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	require.Len(t, view.Questions, 1)
	assert.Len(t, view.Questions[0].Options, 3)
	assert.Equal(t, 70, view.PassingScore)
}

func TestCourseUpdateProgressBounds(t *testing.T) {
	catalog, quizzes, enrollments := catalogFixture()
	svc := NewCourseService(catalog, quizzes, enrollments, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "user-1", "course-1")
	require.NoError(t, err)

	_, err = svc.UpdateProgress(context.Background(), "user-1", "course-1", 120)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	enrollment, err := svc.UpdateProgress(context.Background(), "user-1", "course-1", 60)
	require.NoError(t, err)
	assert.Equal(t, 60, enrollment.Progress)
	assert.Equal(t, 60, enrollments.progress[enrollment.ID])
}

func TestCourseUpdateProgressCompletedIsNoOp(t *testing.T) {
	catalog, quizzes, enrollments := catalogFixture()
	enrollments.enrollments = map[string]*models.Enrollment{
		enrollmentKey("user-1", "course-1"): {
			ID:       "enr-1",
			UserID:   "user-1",
			CourseID: "course-1",
			Status:   models.EnrollmentCompleted,
			Progress: 100,
		},
	}
	svc := NewCourseService(catalog, quizzes, enrollments, zap.NewNop())

	enrollment, err := svc.UpdateProgress(context.Background(), "user-1", "course-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 100, enrollment.Progress)
	assert.Empty(t, enrollments.progress)
}

func TestCourseGetCourseIncludesEnrollment(t *testing.T) {
	catalog, quizzes, enrollments := catalogFixture()
	catalog.modules = []models.CourseModule{{ID: "mod-1", CourseID: "course-1", Title: "Intro"}}
	svc := NewCourseService(catalog, quizzes, enrollments, zap.NewNop())

	detail, err := svc.GetCourse(context.Background(), "course-1", "")
	require.NoError(t, err)
	assert.Nil(t, detail.Enrollment)
	assert.Len(t, detail.Modules, 1)

	_, err = svc.Enroll(context.Background(), "user-1", "course-1")
	require.NoError(t, err)

	detail, err = svc.GetCourse(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Enrollment)
	assert.Equal(t, "user-1", detail.Enrollment.UserID)
}

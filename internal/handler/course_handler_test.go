package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decode-labs/decode-api/internal/middleware"
	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/internal/service"
)

type catalogStoreMock struct {
	courses    []models.Course
	lastFilter models.CourseFilter
}

func (m *catalogStoreMock) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.lastFilter = filter
	return m.courses, len(m.courses), nil
}

func (m *catalogStoreMock) FindByID(ctx context.Context, id string) (*models.Course, error) {
	for i := range m.courses {
		if m.courses[i].ID == id {
			course := m.courses[i]
			return &course, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *catalogStoreMock) ListModules(ctx context.Context, courseID string) ([]models.CourseModule, error) {
	return nil, nil
}

type quizStoreMock struct{}

func (m *quizStoreMock) FindByCourse(ctx context.Context, courseID string) (*models.Quiz, error) {
	return nil, sql.ErrNoRows
}

func (m *quizStoreMock) ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	return nil, nil
}

type enrollmentStoreMock struct {
	enrollment *models.Enrollment
	created    *models.Enrollment
}

func (m *enrollmentStoreMock) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-1"
	m.created = enrollment
	return nil
}

func (m *enrollmentStoreMock) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if m.enrollment != nil && m.enrollment.UserID == userID && m.enrollment.CourseID == courseID {
		enrollment := *m.enrollment
		return &enrollment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *enrollmentStoreMock) UpdateProgress(ctx context.Context, id string, progress int) error {
	if m.enrollment != nil && m.enrollment.ID == id {
		m.enrollment.Progress = progress
	}
	return nil
}

func (m *enrollmentStoreMock) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func newCourseHandler(catalog *catalogStoreMock, enrollments *enrollmentStoreMock) *CourseHandler {
	courses := service.NewCourseService(catalog, &quizStoreMock{}, enrollments, nil)
	return NewCourseHandler(courses, nil)
}

func TestCourseHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := &catalogStoreMock{
		courses: []models.Course{{ID: "course-1", Title: "Go Basics", IsPublished: true}},
	}
	handler := newCourseHandler(catalog, &enrollmentStoreMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses?difficulty=beginner&page=2", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CourseDifficulty("beginner"), catalog.lastFilter.Difficulty)
	assert.Equal(t, 2, catalog.lastFilter.Page)
	assert.Contains(t, w.Body.String(), "Go Basics")
}

func TestCourseHandlerEnrollRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCourseHandler(&catalogStoreMock{}, &enrollmentStoreMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Enroll(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCourseHandlerEnroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := &catalogStoreMock{
		courses: []models.Course{{ID: "course-1", Title: "Go Basics", IsPublished: true}},
	}
	enrollments := &enrollmentStoreMock{}
	handler := newCourseHandler(catalog, enrollments)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleLearner})

	handler.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, enrollments.created)
	assert.Equal(t, "user-1", enrollments.created.UserID)
	assert.Equal(t, models.EnrollmentInProgress, enrollments.created.Status)
}

func TestCourseHandlerUpdateProgressInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newCourseHandler(&catalogStoreMock{}, &enrollmentStoreMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/courses/course-1/progress", bytes.NewBufferString(`{"progress":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleLearner})

	handler.UpdateProgress(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseHandlerUpdateProgress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	enrollments := &enrollmentStoreMock{
		enrollment: &models.Enrollment{
			ID:       "enr-1",
			UserID:   "user-1",
			CourseID: "course-1",
			Status:   models.EnrollmentInProgress,
		},
	}
	handler := newCourseHandler(&catalogStoreMock{}, enrollments)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/courses/course-1/progress", bytes.NewBufferString(`{"progress":60}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleLearner})

	handler.UpdateProgress(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60, enrollments.enrollment.Progress)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListModules(ctx context.Context, courseID string) ([]models.CourseModule, error)
}

type courseQuizStore interface {
	FindByCourse(ctx context.Context, courseID string) (*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error)
}

type courseEnrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	UpdateProgress(ctx context.Context, id string, progress int) error
	ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error)
}

// CourseDetail bundles a course with its modules for the detail endpoint.
type CourseDetail struct {
	models.Course
	Modules    []models.CourseModule `json:"modules"`
	Enrollment *models.Enrollment    `json:"enrollment,omitempty"`
}

// QuizView is a quiz with its questions stripped of correctness flags.
type QuizView struct {
	ID           string             `json:"id"`
	CourseID     string             `json:"course_id"`
	Title        string             `json:"title"`
	PassingScore int                `json:"passing_score"`
	Questions    []QuizQuestionView `json:"questions"`
}

// QuizQuestionView is a question as delivered to clients.
type QuizQuestionView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// CourseService serves the catalog and manages enrollments.
type CourseService struct {
	courses     courseStore
	quizzes     courseQuizStore
	enrollments courseEnrollmentStore
	logger      *zap.Logger
}

// NewCourseService constructs the service with defaults.
func NewCourseService(courses courseStore, quizzes courseQuizStore, enrollments courseEnrollmentStore, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, quizzes: quizzes, enrollments: enrollments, logger: logger}
}

// ListCourses pages through the published catalog.
func (s *CourseService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.courses.List(ctx, filter)
}

// GetCourse returns a course with its modules, and the caller's enrollment
// when one exists.
func (s *CourseService) GetCourse(ctx context.Context, courseID, userID string) (*CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}

	modules, err := s.courses.ListModules(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load modules for course %s: %w", courseID, err)
	}

	detail := &CourseDetail{Course: *course, Modules: modules}
	if userID != "" {
		enrollment, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
		if err == nil {
			detail.Enrollment = enrollment
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load enrollment: %w", err)
		}
	}
	return detail, nil
}

// GetQuiz returns the course quiz with correctness flags stripped.
func (s *CourseService) GetQuiz(ctx context.Context, courseID, userID string) (*QuizView, error) {
	if _, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}

	quiz, err := s.quizzes.FindByCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load quiz for course %s: %w", courseID, err)
	}

	questions, err := s.quizzes.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions for quiz %s: %w", quiz.ID, err)
	}

	view := &QuizView{
		ID:           quiz.ID,
		CourseID:     quiz.CourseID,
		Title:        quiz.Title,
		PassingScore: quiz.PassingScore,
		Questions:    make([]QuizQuestionView, 0, len(questions)),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, QuizQuestionView{
			ID:       q.ID,
			Question: q.Question,
			Options:  q.PublicOptions(),
		})
	}
	return view, nil
}

// Enroll registers the user on a published course. Enrolling twice returns
// the existing enrollment.
func (s *CourseService) Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	if !course.IsPublished {
		return nil, appErrors.ErrNotFound
	}

	existing, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}

	enrollment := &models.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   models.EnrollmentInProgress,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	s.logger.Info("user enrolled", zap.String("user_id", userID), zap.String("course_id", courseID))
	return enrollment, nil
}

// UpdateProgress records module progress for an in-progress enrollment.
// Completion is never reached through here; only a passing quiz flips it.
func (s *CourseService) UpdateProgress(ctx context.Context, userID, courseID string, progress int) (*models.Enrollment, error) {
	if progress < 0 || progress > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "progress must be between 0 and 100")
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	if enrollment.Status == models.EnrollmentCompleted {
		return enrollment, nil
	}

	if err := s.enrollments.UpdateProgress(ctx, enrollment.ID, progress); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	enrollment.Progress = progress
	return enrollment, nil
}

// MyEnrollments lists the caller's enrollments with course info.
func (s *CourseService) MyEnrollments(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	return s.enrollments.ListByUser(ctx, userID)
}

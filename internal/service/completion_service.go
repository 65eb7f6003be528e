package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/pkg/database"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type completionQuizStore interface {
	FindByCourse(ctx context.Context, courseID string) (*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]models.QuizQuestion, error)
	InsertAttempt(ctx context.Context, ext sqlx.ExtContext, attempt *models.QuizAttempt) error
}

type completionEnrollmentStore interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	FindForUpdate(ctx context.Context, ext sqlx.ExtContext, userID, courseID string) (*models.Enrollment, error)
	MarkCompleted(ctx context.Context, ext sqlx.ExtContext, enrollmentID string, completedAt time.Time) (bool, error)
}

type completionLedgerStore interface {
	Append(ctx context.Context, ext sqlx.ExtContext, entry *models.LedgerEntry) error
	AdjustBalance(ctx context.Context, ext sqlx.ExtContext, userID string, delta int) error
}

type completionCourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type completionNotifier interface {
	CourseCompleted(ctx context.Context, userID, courseTitle string, points int)
}

// SubmitQuizResult reports the graded attempt and any award that resulted.
type SubmitQuizResult struct {
	GradeResult
	AttemptID        string `json:"attempt_id"`
	CourseCompleted  bool   `json:"course_completed"`
	AlreadyCompleted bool   `json:"already_completed"`
	PointsAwarded    int    `json:"points_awarded"`
}

// CompletionService grades quiz submissions and, on a first pass, completes
// the enrollment and credits the course reward in a single transaction.
type CompletionService struct {
	quizzes     completionQuizStore
	enrollments completionEnrollmentStore
	ledger      completionLedgerStore
	courses     completionCourseStore
	tx          database.TxRunner
	notifier    completionNotifier
	metrics     *MetricsService
	leaderboard leaderboardInvalidator
	maxRetries  int
	logger      *zap.Logger
}

// NewCompletionService constructs the service with defaults.
func NewCompletionService(
	quizzes completionQuizStore,
	enrollments completionEnrollmentStore,
	ledger completionLedgerStore,
	courses completionCourseStore,
	tx database.TxRunner,
	notifier completionNotifier,
	metrics *MetricsService,
	leaderboard leaderboardInvalidator,
	maxRetries int,
	logger *zap.Logger,
) *CompletionService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionService{
		quizzes:     quizzes,
		enrollments: enrollments,
		ledger:      ledger,
		courses:     courses,
		tx:          tx,
		notifier:    notifier,
		metrics:     metrics,
		leaderboard: leaderboard,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

// SubmitQuiz grades the submission and records the attempt. When the attempt
// passes, the enrollment flips to completed and the course reward lands on
// the ledger, both in one transaction. A course is rewarded at most once per
// user: repeated passing submissions return success with no further award.
func (s *CompletionService) SubmitQuiz(ctx context.Context, userID, courseID string, answers models.AnswerMap) (*SubmitQuizResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
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

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotEnrolled
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}

	grade := GradeQuiz(questions, answers, quiz.PassingScore)
	attempt := &models.QuizAttempt{
		UserID:  userID,
		QuizID:  quiz.ID,
		Score:   grade.Score,
		Passed:  grade.Passed,
		Answers: answers,
	}

	result := &SubmitQuizResult{GradeResult: grade}

	// A failed attempt, or a resubmission after the course is already done,
	// only adds attempt history. Neither needs the enrollment row lock.
	if !grade.Passed || enrollment.Status == models.EnrollmentCompleted {
		if err := s.recordAttempt(ctx, attempt); err != nil {
			return nil, err
		}
		result.AttemptID = attempt.ID
		result.AlreadyCompleted = grade.Passed && enrollment.Status == models.EnrollmentCompleted
		return result, nil
	}

	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		attempt.ID = ""
		result.CourseCompleted = false
		result.AlreadyCompleted = false
		result.PointsAwarded = 0

		txErr := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			locked, err := s.enrollments.FindForUpdate(ctx, tx, userID, courseID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.ErrNotEnrolled
				}
				return fmt.Errorf("lock enrollment: %w", err)
			}

			if err := s.quizzes.InsertAttempt(ctx, tx, attempt); err != nil {
				return fmt.Errorf("record attempt: %w", err)
			}

			// The pre-read happened outside the lock; a concurrent
			// submission may have completed the course since.
			if locked.Status == models.EnrollmentCompleted {
				result.AlreadyCompleted = true
				return nil
			}

			now := time.Now().UTC()
			flipped, err := s.enrollments.MarkCompleted(ctx, tx, locked.ID, now)
			if err != nil {
				return fmt.Errorf("complete enrollment: %w", err)
			}
			if !flipped {
				// Lost the race to a concurrent submission that already
				// completed this enrollment.
				result.AlreadyCompleted = true
				return nil
			}

			if course.PointsReward > 0 {
				desc := fmt.Sprintf("Completed course: %s", course.Title)
				refType := "course"
				entry := &models.LedgerEntry{
					UserID:        userID,
					Amount:        course.PointsReward,
					Kind:          models.LedgerEarned,
					ReferenceType: &refType,
					ReferenceID:   &course.ID,
					Description:   &desc,
				}
				if err := s.ledger.Append(ctx, tx, entry); err != nil {
					return fmt.Errorf("append ledger entry: %w", err)
				}
				if err := s.ledger.AdjustBalance(ctx, tx, userID, course.PointsReward); err != nil {
					return fmt.Errorf("adjust balance: %w", err)
				}
				result.PointsAwarded = course.PointsReward
			}
			result.CourseCompleted = true
			return nil
		})

		if txErr == nil {
			result.AttemptID = attempt.ID
			s.metrics.RecordTxRetries(i)
			if result.CourseCompleted {
				s.metrics.RecordAward(string(models.LedgerEarned), result.PointsAwarded)
				if s.leaderboard != nil && result.PointsAwarded > 0 {
					s.leaderboard.InvalidateLeaderboard(ctx)
				}
				s.logger.Info("course completed",
					zap.String("user_id", userID),
					zap.String("course_id", courseID),
					zap.Int("points_awarded", result.PointsAwarded))
				if s.notifier != nil {
					s.notifier.CourseCompleted(ctx, userID, course.Title, result.PointsAwarded)
				}
			}
			return result, nil
		}

		var appErr *appErrors.Error
		if errors.As(txErr, &appErr) {
			return nil, txErr
		}
		if !database.IsConflict(txErr) {
			return nil, txErr
		}
		lastErr = txErr
		s.metrics.RecordTxConflict("completion")
		s.logger.Warn("completion transaction conflict, retrying",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.Int("attempt", i+1))
	}

	s.logger.Error("completion transaction exhausted retries",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.Error(lastErr))
	su := appErrors.ErrStoreUnavailable
	return nil, appErrors.Wrap(lastErr, su.Code, su.Status, su.Message)
}

// recordAttempt persists attempt history with the same bounded retry policy
// as the award path, but without touching the enrollment row.
func (s *CompletionService) recordAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		txErr := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			return s.quizzes.InsertAttempt(ctx, tx, attempt)
		})
		if txErr == nil {
			return nil
		}
		if !database.IsConflict(txErr) {
			return txErr
		}
		lastErr = txErr
		s.metrics.RecordTxConflict("attempt_history")
	}
	su := appErrors.ErrStoreUnavailable
	return appErrors.Wrap(lastErr, su.Code, su.Status, su.Message)
}

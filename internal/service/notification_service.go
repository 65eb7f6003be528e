package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/pkg/jobs"
	"github.com/decode-labs/decode-api/pkg/mailer"
)

const jobTypeSendEmail = "send_email"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// NotificationService records in-app notifications and dispatches email
// copies through the background queue.
type NotificationService struct {
	notifications notificationStore
	users         notificationUserStore
	mail          mailer.Mailer
	queue         *jobs.Queue
	logger        *zap.Logger
}

// NewNotificationService constructs the service. Call Start before use.
func NewNotificationService(notifications notificationStore, users notificationUserStore, mail mailer.Mailer, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if mail == nil {
		mail = mailer.NopMailer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		notifications: notifications,
		users:         users,
		mail:          mail,
		logger:        logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handleJob, queueCfg)
	return s
}

// Start launches the email dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the email dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// CourseCompleted notifies a user about a completed course and its award.
func (s *NotificationService) CourseCompleted(ctx context.Context, userID, courseTitle string, points int) {
	title := "Course completed"
	message := fmt.Sprintf("You completed %q and earned %d points.", courseTitle, points)
	if points == 0 {
		message = fmt.Sprintf("You completed %q.", courseTitle)
	}
	s.notify(ctx, userID, title, message, "course", nil)
}

// ReferralHired notifies a referrer about their hire bonus.
func (s *NotificationService) ReferralHired(ctx context.Context, userID, candidateName string, points int) {
	title := "Referral hired"
	message := fmt.Sprintf("%s was hired. You earned %d bonus points.", candidateName, points)
	s.notify(ctx, userID, title, message, "referral", nil)
}

// RedemptionUpdated notifies a user about a fulfilment change.
func (s *NotificationService) RedemptionUpdated(ctx context.Context, userID, itemName string, status models.RedemptionStatus) {
	title := "Redemption update"
	message := fmt.Sprintf("Your redemption of %q is now %s.", itemName, status)
	s.notify(ctx, userID, title, message, "redemption", nil)
}

func (s *NotificationService) notify(ctx context.Context, userID, title, message, refType string, refID *string) {
	n := &models.Notification{
		UserID:      userID,
		Title:       title,
		Message:     message,
		Type:        refType,
		ReferenceID: refID,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Warn("failed to record notification",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	job := jobs.Job{ID: uuid.NewString(), Type: jobTypeSendEmail, Payload: n.ID}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to queue notification email",
			zap.String("notification_id", n.ID),
			zap.Error(err))
	}
}

// List returns the user's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, unreadOnly)
}

// MarkRead flags a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.notifications.MarkRead(ctx, id, userID)
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	notificationID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	notification, err := s.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}

	user, err := s.users.FindByID(ctx, notification.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	msg := mailer.Message{
		ToName:    user.FullName,
		ToAddress: user.Email,
		Subject:   notification.Title,
		Body:      notification.Message,
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	return nil
}

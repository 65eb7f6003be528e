package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, fullName string, bio, avatarURL *string, goals, skills []string, onboarded bool) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// UpdateProfileRequest updates the user's profile. Submitting goals or
// skills marks the user onboarded.
type UpdateProfileRequest struct {
	FullName  string   `json:"full_name" validate:"required,min=2,max=200"`
	Bio       *string  `json:"bio" validate:"omitempty,max=1000"`
	AvatarURL *string  `json:"avatar_url" validate:"omitempty,url,max=500"`
	Goals     []string `json:"goals" validate:"omitempty,dive,min=1,max=100"`
	Skills    []string `json:"skills" validate:"omitempty,dive,min=1,max=100"`
}

// UserService manages profiles and onboarding.
type UserService struct {
	users     userStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service with defaults.
func NewUserService(users userStore, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, validator: validate, logger: logger}
}

// Profile returns the user's profile.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile applies profile changes. Once goals or skills are provided
// the account counts as onboarded; onboarding never reverts.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	onboarded := user.IsOnboarded || len(req.Goals) > 0 || len(req.Skills) > 0
	if err := s.users.UpdateProfile(ctx, userID, req.FullName, req.Bio, req.AvatarURL, req.Goals, req.Skills, onboarded); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return s.users.FindByID(ctx, userID)
}

// Deactivate disables the account and revokes its sessions.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("deactivate user %s: %w", userID, err)
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions on deactivation",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	s.logger.Info("account deactivated", zap.String("user_id", userID))
	return nil
}

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

type roomStore interface {
	List(ctx context.Context, status models.RoomStatus) ([]models.RoomDetail, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room, ownerID string) error
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	AddParticipant(ctx context.Context, roomID, userID string) (bool, error)
	InsertMessage(ctx context.Context, msg *models.RoomMessage) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]models.RoomMessage, error)
}

type roomBroker interface {
	Publish(ctx context.Context, msg *models.RoomMessage) error
	Subscribe(ctx context.Context, roomID string) (<-chan *models.RoomMessage, error)
}

// CreateRoomRequest opens a new collaboration room.
type CreateRoomRequest struct {
	Name            string  `json:"name" validate:"required,min=2,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	ProjectType     *string `json:"project_type" validate:"omitempty,max=100"`
	MaxParticipants int     `json:"max_participants" validate:"omitempty,gte=2,lte=50"`
}

// PostMessageRequest sends a message to a room.
type PostMessageRequest struct {
	MessageType models.MessageType `json:"message_type" validate:"omitempty,oneof=chat standup task"`
	Content     string             `json:"content" validate:"required,min=1,max=4000"`
}

// RoomService manages collaboration rooms, membership and chat.
type RoomService struct {
	rooms           roomStore
	broker          roomBroker
	defaultCapacity int
	messagePageSize int
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewRoomService constructs the service with defaults.
func NewRoomService(rooms roomStore, broker roomBroker, defaultCapacity, messagePageSize int, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if defaultCapacity <= 0 {
		defaultCapacity = 6
	}
	if messagePageSize <= 0 {
		messagePageSize = 50
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{
		rooms:           rooms,
		broker:          broker,
		defaultCapacity: defaultCapacity,
		messagePageSize: messagePageSize,
		validator:       validate,
		logger:          logger,
	}
}

// ListRooms returns rooms, optionally filtered by status.
func (s *RoomService) ListRooms(ctx context.Context, status models.RoomStatus) ([]models.RoomDetail, error) {
	return s.rooms.List(ctx, status)
}

// CreateRoom opens a room with the creator as owner and first participant.
func (s *RoomService) CreateRoom(ctx context.Context, userID string, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	capacity := req.MaxParticipants
	if capacity == 0 {
		capacity = s.defaultCapacity
	}
	room := &models.Room{
		Name:            req.Name,
		Description:     req.Description,
		ProjectType:     req.ProjectType,
		MaxParticipants: capacity,
		Status:          models.RoomOpen,
		CreatedBy:       &userID,
	}
	if err := s.rooms.Create(ctx, room, userID); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	s.logger.Info("room created", zap.String("room_id", room.ID), zap.String("user_id", userID))
	return room, nil
}

// JoinRoom adds the user to an open room. Joining a full room fails; joining
// a room twice is a no-op.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("load room %s: %w", roomID, err)
	}
	if room.Status != models.RoomOpen {
		return appErrors.Clone(appErrors.ErrConflict, "room is not open for joining")
	}

	member, err := s.rooms.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if member {
		return nil
	}

	added, err := s.rooms.AddParticipant(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	if !added {
		return appErrors.ErrRoomFull
	}
	s.logger.Info("user joined room", zap.String("room_id", roomID), zap.String("user_id", userID))
	return nil
}

// PostMessage persists a message and fans it out to subscribers.
func (s *RoomService) PostMessage(ctx context.Context, roomID, userID string, req PostMessageRequest) (*models.RoomMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	member, err := s.rooms.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, appErrors.ErrForbidden
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = models.MessageChat
	}
	msg := &models.RoomMessage{
		RoomID:      roomID,
		UserID:      userID,
		MessageType: msgType,
		Content:     req.Content,
	}
	if err := s.rooms.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if s.broker != nil {
		if err := s.broker.Publish(ctx, msg); err != nil {
			s.logger.Warn("message fan-out failed",
				zap.String("room_id", roomID),
				zap.Error(err))
		}
	}
	return msg, nil
}

// Messages returns the most recent messages in chronological order.
func (s *RoomService) Messages(ctx context.Context, roomID, userID string) ([]models.RoomMessage, error) {
	member, err := s.rooms.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, appErrors.ErrForbidden
	}
	return s.rooms.ListMessages(ctx, roomID, s.messagePageSize)
}

// Stream subscribes to live messages for a room the user belongs to.
func (s *RoomService) Stream(ctx context.Context, roomID, userID string) (<-chan *models.RoomMessage, error) {
	member, err := s.rooms.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, appErrors.ErrForbidden
	}
	if s.broker == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "live streaming is not configured")
	}
	return s.broker.Subscribe(ctx, roomID)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/decode-labs/decode-api/internal/models"
)

// RoomRepository handles collaboration rooms, membership and message history.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms with their participant counts.
func (r *RoomRepository) List(ctx context.Context, status models.RoomStatus) ([]models.RoomDetail, error) {
	query := `SELECT r.id, r.name, r.description, r.project_type, r.max_participants, r.status, r.created_by, r.created_at, r.updated_at,
        COUNT(p.id) AS participant_count
        FROM rooms r
        LEFT JOIN room_participants p ON p.room_id = r.id`
	var args []interface{}
	if status != "" {
		query += " WHERE r.status = $1"
		args = append(args, status)
	}
	query += " GROUP BY r.id ORDER BY r.created_at DESC"

	var rooms []models.RoomDetail
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID returns a room by identifier.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, name, description, project_type, max_participants, status, created_by, created_at, updated_at
        FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create inserts the room and its owner membership in one transaction.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room, ownerID string) error {
	now := time.Now().UTC()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = models.RoomOpen
	}
	room.CreatedAt = now
	room.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create room: %w", err)
	}
	const roomQuery = `INSERT INTO rooms (id, name, description, project_type, max_participants, status, created_by, created_at, updated_at)
        VALUES (:id, :name, :description, :project_type, :max_participants, :status, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, roomQuery, room); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create room: %w", err)
	}
	const memberQuery = `INSERT INTO room_participants (id, room_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, memberQuery, uuid.NewString(), room.ID, ownerID, models.RoomRoleOwner, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create room owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create room: %w", err)
	}
	return nil
}

// CountParticipants returns the current membership size.
func (r *RoomRepository) CountParticipants(ctx context.Context, roomID string) (int, error) {
	const query = `SELECT COUNT(*) FROM room_participants WHERE room_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, roomID); err != nil {
		return 0, fmt.Errorf("count room participants: %w", err)
	}
	return count, nil
}

// IsParticipant reports whether the user belongs to the room.
func (r *RoomRepository) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM room_participants WHERE room_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, roomID, userID); err != nil {
		return false, fmt.Errorf("check room participant: %w", err)
	}
	return count > 0, nil
}

// AddParticipant joins a user to a room, enforcing capacity in one statement
// so concurrent joins cannot overshoot max_participants.
func (r *RoomRepository) AddParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	const query = `INSERT INTO room_participants (id, room_id, user_id, role, joined_at)
        SELECT $1, $2, $3, $4, $5
        WHERE (SELECT COUNT(*) FROM room_participants WHERE room_id = $2) <
              (SELECT max_participants FROM rooms WHERE id = $2)
        ON CONFLICT (room_id, user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, uuid.NewString(), roomID, userID, models.RoomRoleMember, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("add room participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add room participant: %w", err)
	}
	return affected == 1, nil
}

// InsertMessage persists a chat message.
func (r *RoomRepository) InsertMessage(ctx context.Context, msg *models.RoomMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.MessageType == "" {
		msg.MessageType = models.MessageChat
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO room_messages (id, room_id, user_id, message_type, content, created_at)
        VALUES (:id, :room_id, :user_id, :message_type, :content, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("insert room message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent messages, oldest first within the page.
func (r *RoomRepository) ListMessages(ctx context.Context, roomID string, limit int) ([]models.RoomMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, room_id, user_id, message_type, content, created_at FROM (
        SELECT id, room_id, user_id, message_type, content, created_at
        FROM room_messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT %d
        ) recent ORDER BY created_at ASC`, limit)
	var messages []models.RoomMessage
	if err := r.db.SelectContext(ctx, &messages, query, roomID); err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	return messages, nil
}

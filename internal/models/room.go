package models

import "time"

// RoomStatus tracks the lifecycle of a collaboration room.
type RoomStatus string

const (
	RoomOpen       RoomStatus = "open"
	RoomInProgress RoomStatus = "in_progress"
	RoomCompleted  RoomStatus = "completed"
)

// Room is a peer collaboration space with real-time chat.
type Room struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Description     *string    `db:"description" json:"description,omitempty"`
	ProjectType     *string    `db:"project_type" json:"project_type,omitempty"`
	MaxParticipants int        `db:"max_participants" json:"max_participants"`
	Status          RoomStatus `db:"status" json:"status"`
	CreatedBy       *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// RoomDetail enriches Room with the participant count.
type RoomDetail struct {
	Room
	ParticipantCount int `db:"participant_count" json:"participant_count"`
}

// RoomRole distinguishes the creator from members.
type RoomRole string

const (
	RoomRoleOwner  RoomRole = "owner"
	RoomRoleMember RoomRole = "member"
)

// RoomParticipant is a user's membership in a room.
type RoomParticipant struct {
	ID       string    `db:"id" json:"id"`
	RoomID   string    `db:"room_id" json:"room_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Role     RoomRole  `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// MessageType classifies room messages.
type MessageType string

const (
	MessageChat    MessageType = "chat"
	MessageStandup MessageType = "standup"
	MessageTask    MessageType = "task"
)

// RoomMessage is one chat message, persisted for history and fanned out over
// the room's pub/sub channel with at-least-once delivery.
type RoomMessage struct {
	ID          string      `db:"id" json:"id"`
	RoomID      string      `db:"room_id" json:"room_id"`
	UserID      string      `db:"user_id" json:"user_id"`
	MessageType MessageType `db:"message_type" json:"message_type"`
	Content     string      `db:"content" json:"content"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

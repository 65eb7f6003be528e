package models

import "time"

// Notification is an in-app notification row. Email delivery piggybacks on
// the same record through the notification queue.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	Type        string    `db:"type" json:"type"`
	ReferenceID *string   `db:"reference_id" json:"reference_id,omitempty"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

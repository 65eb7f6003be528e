package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles.
type UserRole string

const (
	RoleLearner UserRole = "LEARNER"
	RoleAdmin   UserRole = "ADMIN"
)

// AuthProvider identifies how the account was created.
type AuthProvider string

const (
	ProviderEmail    AuthProvider = "email"
	ProviderGoogle   AuthProvider = "google"
	ProviderLinkedIn AuthProvider = "linkedin"
)

// User represents an application user stored in the users table.
// TotalPoints is a materialized view of the user's ledger: it must always
// equal the sum of the user's points_transactions amounts, and is only ever
// written inside the same transaction as a ledger append.
type User struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	Role         UserRole       `db:"role" json:"role"`
	Provider     AuthProvider   `db:"provider" json:"provider"`
	AvatarURL    *string        `db:"avatar_url" json:"avatar_url,omitempty"`
	Bio          *string        `db:"bio" json:"bio,omitempty"`
	Goals        pq.StringArray `db:"goals" json:"goals"`
	Skills       pq.StringArray `db:"skills" json:"skills"`
	TotalPoints  int            `db:"total_points" json:"total_points"`
	IsOnboarded  bool           `db:"is_onboarded" json:"is_onboarded"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// LeaderboardEntry is a ranked row for the points leaderboard.
type LeaderboardEntry struct {
	Rank        int     `db:"rank" json:"rank"`
	UserID      string  `db:"user_id" json:"user_id"`
	FullName    string  `db:"full_name" json:"full_name"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url,omitempty"`
	TotalPoints int     `db:"total_points" json:"total_points"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

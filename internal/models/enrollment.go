package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// An enrollment transitions in_progress -> completed exactly once; the flip
// happens inside the completion transaction together with the ledger append.
const (
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

// Enrollment captures a user's registration to a course.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	Progress    int              `db:"progress" json:"progress"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with course info for listings.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle  string `db:"course_title" json:"course_title"`
	PointsReward int    `db:"points_reward" json:"points_reward"`
}

// AnswerMap maps question id to the selected option index.
type AnswerMap map[string]int

// Value implements driver.Valuer.
func (a AnswerMap) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AnswerMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = nil
		return nil
	default:
		return fmt.Errorf("unsupported answer map type %T", src)
	}
}

// QuizAttempt is an append-only record of one graded submission. Multiple
// attempts per user and quiz are expected; any passing attempt gates
// completion.
type QuizAttempt struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	QuizID    string    `db:"quiz_id" json:"quiz_id"`
	Score     int       `db:"score" json:"score"`
	Passed    bool      `db:"passed" json:"passed"`
	Answers   AnswerMap `db:"answers" json:"answers"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

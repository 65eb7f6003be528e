package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CourseDifficulty grades the course level.
type CourseDifficulty string

const (
	DifficultyBeginner     CourseDifficulty = "beginner"
	DifficultyIntermediate CourseDifficulty = "intermediate"
	DifficultyAdvanced     CourseDifficulty = "advanced"
)

// Course is a published learning track. PointsReward is the amount credited
// on completion; the awarding transaction snapshots it into the ledger so a
// later edit never changes past awards.
type Course struct {
	ID           string           `db:"id" json:"id"`
	Title        string           `db:"title" json:"title"`
	Description  *string          `db:"description" json:"description,omitempty"`
	ThumbnailURL *string          `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	Difficulty   CourseDifficulty `db:"difficulty" json:"difficulty"`
	PointsReward int              `db:"points_reward" json:"points_reward"`
	IsPublished  bool             `db:"is_published" json:"is_published"`
	CreatedBy    *string          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// CourseModule is one content unit of a course.
type CourseModule struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	Title      string    `db:"title" json:"title"`
	Content    *string   `db:"content" json:"content,omitempty"`
	VideoURL   *string   `db:"video_url" json:"video_url,omitempty"`
	OrderIndex int       `db:"order_index" json:"order_index"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Quiz gates course completion. Immutable once published.
type Quiz struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Title        string    `db:"title" json:"title"`
	PassingScore int       `db:"passing_score" json:"passing_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// QuizOption is one selectable answer. Exactly one option per question is
// correct; that invariant is enforced at authoring time, not by the grader.
type QuizOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuizOptions is the JSONB-backed option list.
type QuizOptions []QuizOption

// Value implements driver.Valuer.
func (o QuizOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner.
func (o *QuizOptions) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	case nil:
		*o = nil
		return nil
	default:
		return fmt.Errorf("unsupported quiz options type %T", src)
	}
}

// QuizQuestion is an ordered question with its options.
type QuizQuestion struct {
	ID         string      `db:"id" json:"id"`
	QuizID     string      `db:"quiz_id" json:"quiz_id"`
	Question   string      `db:"question" json:"question"`
	Options    QuizOptions `db:"options" json:"options"`
	OrderIndex int         `db:"order_index" json:"order_index"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// PublicOptions strips correctness flags for client delivery.
func (q QuizQuestion) PublicOptions() []string {
	out := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		out = append(out, opt.Text)
	}
	return out
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Difficulty CourseDifficulty
	Search     string
	Page       int
	PageSize   int
}

package models

import "time"

// ReferralStatus tracks a referred candidate through hiring.
type ReferralStatus string

const (
	ReferralSubmitted    ReferralStatus = "submitted"
	ReferralInterviewing ReferralStatus = "interviewing"
	ReferralHired        ReferralStatus = "hired"
	ReferralRejected     ReferralStatus = "rejected"
)

// Referral is a candidate recommendation. PointsAwarded records the bonus
// snapshot at hire time; a referral awards at most once.
type Referral struct {
	ID             string         `db:"id" json:"id"`
	ReferrerID     string         `db:"referrer_id" json:"referrer_id"`
	CandidateName  string         `db:"candidate_name" json:"candidate_name"`
	CandidateEmail string         `db:"candidate_email" json:"candidate_email"`
	CandidatePhone *string        `db:"candidate_phone" json:"candidate_phone,omitempty"`
	JobTitle       *string        `db:"job_title" json:"job_title,omitempty"`
	CompanyName    *string        `db:"company_name" json:"company_name,omitempty"`
	Status         ReferralStatus `db:"status" json:"status"`
	ReferralCode   *string        `db:"referral_code" json:"referral_code,omitempty"`
	PointsAwarded  int            `db:"points_awarded" json:"points_awarded"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

package models

import "time"

// LedgerKind classifies a points movement.
type LedgerKind string

const (
	LedgerEarned   LedgerKind = "earned"
	LedgerRedeemed LedgerKind = "redeemed"
	LedgerBonus    LedgerKind = "bonus"
	LedgerReferral LedgerKind = "referral"
)

// LedgerEntry is one immutable row of the points_transactions table, the
// single source of truth for balances. Amounts are signed: credits positive,
// debits negative.
type LedgerEntry struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	Amount        int        `db:"amount" json:"amount"`
	Kind          LedgerKind `db:"kind" json:"kind"`
	ReferenceType *string    `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *string    `db:"reference_id" json:"reference_id,omitempty"`
	Description   *string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// LedgerFilter pages through a user's points history.
type LedgerFilter struct {
	UserID   string
	Kind     LedgerKind
	Page     int
	PageSize int
}

// StatementStatus tracks async statement generation.
type StatementStatus string

const (
	StatementPending StatementStatus = "pending"
	StatementReady   StatementStatus = "ready"
	StatementFailed  StatementStatus = "failed"
)

// PointsStatement is a requested export of a user's ledger history.
type PointsStatement struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Status      StatementStatus `db:"status" json:"status"`
	FilePath    *string         `db:"file_path" json:"-"`
	Error       *string         `db:"error" json:"error,omitempty"`
	RequestedAt time.Time       `db:"requested_at" json:"requested_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

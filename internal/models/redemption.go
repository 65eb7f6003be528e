package models

import "time"

// RedemptionStatus tracks fulfilment of a reward redemption.
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionShipped  RedemptionStatus = "shipped"
	RedemptionRejected RedemptionStatus = "rejected"
)

// Redemption is a reward claim. It is created in the same transaction as its
// debit ledger entry; both exist or neither does.
type Redemption struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	ItemName        string           `db:"item_name" json:"item_name"`
	PointsCost      int              `db:"points_cost" json:"points_cost"`
	Status          RedemptionStatus `db:"status" json:"status"`
	ShippingAddress *string          `db:"shipping_address" json:"shipping_address,omitempty"`
	Notes           *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// RedemptionFilter pages through redemptions.
type RedemptionFilter struct {
	UserID   string
	Status   RedemptionStatus
	Page     int
	PageSize int
}

package models

import "time"

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// WithdrawalRequest escrows points at creation time: while status is
// pending the points have already been debited from User.Points. Approve
// makes the debit permanent (TotalWithdrawn += Points); reject credits
// them back.
type WithdrawalRequest struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	UserID      string           `gorm:"index;not null" json:"user_id"` // ExternalUserID
	Amount      int64            `gorm:"not null" json:"amount"`        // currency units requested
	Points      int64            `gorm:"not null" json:"points"`        // escrowed = Amount × conversion rate
	UPI         string           `gorm:"not null" json:"upi"`           // payout destination
	Status      WithdrawalStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}

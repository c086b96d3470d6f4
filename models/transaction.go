package models

import "time"

// TransactionType tags each ledger entry with the earning (or bookkeeping)
// path that produced it.
type TransactionType string

const (
	TransactionTypeTask            TransactionType = "task"
	TransactionTypeAd              TransactionType = "ad"
	TransactionTypeQuiz            TransactionType = "quiz"
	TransactionTypeCaptcha         TransactionType = "captcha"
	TransactionTypeSMSVerification TransactionType = "sms_verification"
	TransactionTypeGameTask        TransactionType = "game_task"
	TransactionTypeReferralBonus   TransactionType = "referral_bonus"

	// Bookkeeping entries — recorded for audit but excluded from the
	// earning sum (they never move TotalEarned).
	TransactionTypeWithdrawalRefund TransactionType = "withdrawal_refund"
	TransactionTypeAdminAdjustment  TransactionType = "admin_adjustment"
)

// EarningTypes are the credit paths whose points sum must always equal
// User.TotalEarned.
var EarningTypes = []TransactionType{
	TransactionTypeTask,
	TransactionTypeAd,
	TransactionTypeQuiz,
	TransactionTypeCaptcha,
	TransactionTypeSMSVerification,
	TransactionTypeGameTask,
	TransactionTypeReferralBonus,
}

// IsEarning reports whether entries of this type count toward TotalEarned.
func (t TransactionType) IsEarning() bool {
	for _, e := range EarningTypes {
		if t == e {
			return true
		}
	}
	return false
}

// Transaction is an immutable, append-only ledger entry. Never updated or
// deleted once written, except the bulk cleanup that rides on an admin
// user purge.
type Transaction struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"index;not null" json:"user_id"` // ExternalUserID
	Type        TransactionType `gorm:"size:32;not null;index" json:"type"`
	Points      int64           `gorm:"not null" json:"points"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
}

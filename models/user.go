package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local reward-ledger account for one person.
// Identity is owned by the auth service; rows are created on first sign-in
// (via the user sync worker) and mutated only through the ledger, quota,
// withdrawal and referral services — or trusted admin overrides.
type User struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // auth service UUID
	Username       string `gorm:"index;not null" json:"username"`
	Email          string `json:"email,omitempty"`

	// Points is the spendable balance; TotalEarned is the lifetime sum of
	// credits and never decreases. Withdrawal debits are tracked on
	// TotalWithdrawn, not as negative ledger rows.
	Points         int64 `gorm:"not null;default:0" json:"points"`
	TotalEarned    int64 `gorm:"not null;default:0" json:"total_earned"`
	TotalWithdrawn int64 `gorm:"not null;default:0" json:"total_withdrawn"`

	// Daily ad-watch quota, reset lazily on the first watch of a new day.
	WatchCount        int    `gorm:"not null;default:0" json:"watch_count"`
	LastWatchResetKey string `gorm:"size:10;not null;default:''" json:"last_watch_reset_key"` // "2006-01-02"

	// ReferredBy is set once at first sign-in and never overwritten;
	// ReferralBonusAwarded flips true exactly once.
	ReferralCode         string  `gorm:"index" json:"referral_code"`
	ReferredBy           *string `gorm:"index" json:"referred_by,omitempty"` // referrer's ExternalUserID
	ReferralBonusAwarded bool    `gorm:"not null;default:false" json:"referral_bonus_awarded"`

	// Moderation flags (admin surface only).
	IsBanned   bool `gorm:"not null;default:false" json:"is_banned"`
	IsDisabled bool `gorm:"not null;default:false" json:"is_disabled"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

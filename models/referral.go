package models

import "time"

type ReferralStatus string

const (
	ReferralStatusPending      ReferralStatus = "pending"
	ReferralStatusBonusAwarded ReferralStatus = "bonus_awarded"
)

// Referral links a referred user to their referrer. A given ReferredID may
// have at most one row (unique index) — the binding happens once at first
// sign-in and is never rewritten.
type Referral struct {
	ID               string         `gorm:"primaryKey" json:"id"`
	ReferrerID       string         `gorm:"index;not null" json:"referrer_id"`       // ExternalUserID
	ReferredID       string         `gorm:"uniqueIndex;not null" json:"referred_id"` // ExternalUserID
	ReferralCodeUsed string         `gorm:"not null" json:"referral_code_used"`
	Status           ReferralStatus `gorm:"size:16;not null;default:'pending'" json:"status"`
	BonusPoints      int64          `gorm:"not null;default:0" json:"bonus_points"`
	AwardedAt        *time.Time     `json:"awarded_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

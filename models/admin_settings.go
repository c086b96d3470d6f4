package models

import "time"

// SettingsRowID is the primary key of the single global settings document.
const SettingsRowID = "global"

// AdminSettings is the one shared configuration row: provider keys/URLs and
// the reward tunables. Read-mostly — written only by the admin surface, read
// through the cached settings provider.
type AdminSettings struct {
	ID string `gorm:"primaryKey;size:16" json:"id"`

	// Reward tunables.
	AdRewardPoints          int64 `gorm:"not null;default:5" json:"ad_reward_points"`
	DailyAdLimit            int   `gorm:"not null;default:3" json:"daily_ad_limit"`
	CaptchaRewardPoints     int64 `gorm:"not null;default:2" json:"captcha_reward_points"`
	QuizRewardPoints        int64 `gorm:"not null;default:3" json:"quiz_reward_points"`
	ReferralThresholdPoints int64 `gorm:"not null;default:100" json:"referral_threshold_points"`
	ReferralBonusPoints     int64 `gorm:"not null;default:50" json:"referral_bonus_points"`

	// Withdrawal policy.
	MinWithdrawAmount     int64 `gorm:"not null;default:100" json:"min_withdraw_amount"`
	PointsPerCurrencyUnit int64 `gorm:"not null;default:10" json:"points_per_currency_unit"`

	// Claim gating for offers with no reliable completion signal.
	MinOfferDwellSeconds int `gorm:"not null;default:15" json:"min_offer_dwell_seconds"`

	// Provider config (offerwall embeds, postback secrets).
	OfferwallURL    string `gorm:"type:text" json:"offerwall_url,omitempty"`
	VideoAdURL      string `gorm:"type:text" json:"video_ad_url,omitempty"`
	CaptchaSiteKey  string `json:"captcha_site_key,omitempty"`
	PostbackSecret  string `json:"-"`
	OfferSyncAPIKey string `json:"-"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

package models

import "time"

// OfferClickStatus tracks one attempt at an externally-verified offer.
type OfferClickStatus string

const (
	OfferClickStatusClicked OfferClickStatus = "clicked"
	OfferClickStatusClaimed OfferClickStatus = "claimed"
	OfferClickStatusExpired OfferClickStatus = "expired"
)

// OfferClick records intent to attempt an offer (the "click") and is the
// dedup guard for the click-then-claim flow: at most one row per
// (user_id, offer_id) may ever have claimed = true. The partial unique
// index uniq_click_claim enforces that in the store, so racing claims over
// different click rows cannot both mark theirs claimed.
type OfferClick struct {
	ID            string           `gorm:"primaryKey" json:"id"` // userID + slugged offerID + clicked-at millis + random suffix
	UserID        string           `gorm:"index:idx_click_user_offer;uniqueIndex:uniq_click_claim,where:claimed;not null" json:"user_id"`
	OfferID       string           `gorm:"index:idx_click_user_offer;uniqueIndex:uniq_click_claim,where:claimed;not null" json:"offer_id"`
	OfferName     string           `json:"offer_name"`
	OfferURL      string           `gorm:"type:text" json:"offer_url,omitempty"`
	Status        OfferClickStatus `gorm:"size:16;not null;default:'clicked'" json:"status"`
	Claimed       bool             `gorm:"not null;default:false;index" json:"claimed"`
	PointsAwarded int64            `gorm:"not null;default:0" json:"points_awarded"`
	ClickedAt     time.Time        `json:"clicked_at" gorm:"autoCreateTime;index"`
	ClaimedAt     *time.Time       `json:"claimed_at,omitempty"`
}

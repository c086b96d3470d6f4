package models

import "time"

type PostbackStatus string

const (
	PostbackStatusCredited  PostbackStatus = "credited"
	PostbackStatusDuplicate PostbackStatus = "duplicate"
	PostbackStatusFailed    PostbackStatus = "failed"
)

// PostbackEvent is the idempotency record for inbound provider postbacks:
// the unique (provider, event_id) index makes the duplicate check an
// insert-time guarantee rather than a read-then-write.
type PostbackEvent struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	Provider  string         `gorm:"uniqueIndex:idx_postback_provider_event;not null" json:"provider"`
	EventID   string         `gorm:"uniqueIndex:idx_postback_provider_event;not null" json:"event_id"`
	UserID    string         `gorm:"index;not null" json:"user_id"`
	OfferID   string         `json:"offer_id,omitempty"`
	Points    int64          `gorm:"not null" json:"points"`
	Status    PostbackStatus `gorm:"size:16;not null" json:"status"`
	Note      string         `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// OfferMirror mirrors the offer catalog from the provider aggregator.
// Populated via the offer sync worker; reward amounts on claim are resolved
// from this table, never trusted from the claiming client.
// Table name: offer_mirror
type OfferMirror struct {
	ID           string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Provider     string    `gorm:"size:64;not null;index" json:"provider"`
	ExternalKey  string    `gorm:"size:128;not null;uniqueIndex" json:"external_key"` // provider's offer id
	Name         string    `gorm:"not null" json:"name"`
	URL          string    `gorm:"type:text" json:"url"`
	RewardPoints int64     `gorm:"not null" json:"reward_points"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (OfferMirror) TableName() string {
	return "offer_mirror"
}

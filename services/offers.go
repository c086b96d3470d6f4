// services/offers.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"reward-ledger-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// OfferService is the dedup/claim tracker for externally-verified offers.
// The two-phase click→claim flow exists because the embedded third-party
// completion signal is unreliable: the UI records the click when it opens
// the offer, waits for a completion hint (postMessage, dwell timer, window
// close), and only then calls Claim — which is single-use per offer
// instance no matter how many times the UI retries.
type OfferService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewOfferService(db *gorm.DB, ledger *LedgerService) *OfferService {
	return &OfferService{DB: db, Ledger: ledger}
}

// TrackClick records intent to attempt an offer. Purely observational —
// always succeeds and never pays anything. The id carries a random suffix
// so rapid repeat clicks (same user, same offer, same millisecond) never
// collide on the primary key.
func (s *OfferService) TrackClick(externalUserID, offerID, offerName, offerURL string) (string, error) {
	click := models.OfferClick{
		ID:        fmt.Sprintf("%s_%s_%d_%.8s", externalUserID, slug.Make(offerID), time.Now().UnixMilli(), uuid.NewString()),
		UserID:    externalUserID,
		OfferID:   offerID,
		OfferName: offerName,
		OfferURL:  offerURL,
		Status:    models.OfferClickStatusClicked,
	}
	if err := s.DB.Create(&click).Error; err != nil {
		return "", err
	}
	log.Printf("🖱️ Click tracked: user=%s offer=%s (%s)", externalUserID, offerID, click.ID)
	return click.ID, nil
}

// IsClaimed reports whether this user has ever claimed this offer.
func (s *OfferService) IsClaimed(externalUserID, offerID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.OfferClick{}).
		Where("user_id = ? AND offer_id = ? AND claimed = ?", externalUserID, offerID, true).
		Count(&count).Error
	return count > 0, err
}

type ClaimResult struct {
	ClickID       string `json:"click_id"`
	PointsAwarded int64  `json:"points_awarded"`
	NewPoints     int64  `json:"new_points"`
}

// Claim pays out one offer completion, exactly once. Fails fast with
// ErrAlreadyClaimed when the offer was paid before (callers should present
// that as "already handled", not as a failure), and with ErrNoClickFound
// when no preceding click exists — a claim for an offer that was never
// opened is rejected.
//
// The claimed-check, the click lookup and the flag flip all run in one
// transaction, and the uniq_click_claim partial index backstops the flip:
// even when two racing claims pick different click rows for the same
// (user, offer), only one can commit claimed = true — the loser surfaces
// as ErrAlreadyClaimed.
func (s *OfferService) Claim(externalUserID, offerID, offerName string, rewardPoints int64) (*ClaimResult, error) {
	if rewardPoints <= 0 {
		return nil, ErrInvalidAmount
	}

	var out ClaimResult
	var credit *CreditResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prior int64
		if err := tx.Model(&models.OfferClick{}).
			Where("user_id = ? AND offer_id = ? AND claimed = ?", externalUserID, offerID, true).
			Count(&prior).Error; err != nil {
			return err
		}
		if prior > 0 {
			return ErrAlreadyClaimed
		}

		var click models.OfferClick
		err := tx.Where("user_id = ? AND offer_id = ? AND claimed = ? AND status = ?",
			externalUserID, offerID, false, models.OfferClickStatusClicked).
			Order("clicked_at DESC").
			First(&click).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoClickFound
		}
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.OfferClick{}).
			Where("id = ? AND claimed = ?", click.ID, false).
			Updates(map[string]interface{}{
				"claimed":        true,
				"status":         models.OfferClickStatusClaimed,
				"points_awarded": rewardPoints,
				"claimed_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}
		out.ClickID = click.ID

		credit, err = s.Ledger.creditTx(tx, externalUserID, rewardPoints,
			models.TransactionTypeTask, fmt.Sprintf("Offer completed: %s", offerName))
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A racing claim won between our check and the flag flip.
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, err
	}

	s.Ledger.fireReferralCheck(externalUserID, credit.NewTotalEarned-rewardPoints, credit.NewTotalEarned)

	out.PointsAwarded = rewardPoints
	out.NewPoints = credit.NewPoints
	log.Printf("🎁 Offer claimed: user=%s offer=%s +%d pts", externalUserID, offerID, rewardPoints)
	return &out, nil
}

// ResolveRewardPoints looks the reward up in the mirrored provider catalog.
// The claiming client never dictates the amount; when the offer is unknown
// locally the fallback applies.
func (s *OfferService) ResolveRewardPoints(offerID string, fallback int64) int64 {
	var offer models.OfferMirror
	err := s.DB.Where("external_key = ? AND is_active = ?", offerID, true).First(&offer).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ Offer catalog lookup failed for %s: %v", offerID, err)
		}
		return fallback
	}
	return offer.RewardPoints
}

// ExpireStaleClicks marks unclaimed clicks older than maxAge as expired.
// Run by the scheduler; expired clicks no longer satisfy the claim lookup.
func (s *OfferService) ExpireStaleClicks(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := s.DB.Model(&models.OfferClick{}).
		Where("claimed = ? AND status = ? AND clicked_at < ?",
			false, models.OfferClickStatusClicked, cutoff).
		Update("status", models.OfferClickStatusExpired)
	return res.RowsAffected, res.Error
}

// services/referral.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"reward-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralService pays the one-time referrer bonus when a referred user's
// lifetime earnings first cross the configured threshold.
type ReferralService struct {
	DB       *gorm.DB
	Settings *SettingsService
}

func NewReferralService(db *gorm.DB, settings *SettingsService) *ReferralService {
	return &ReferralService{DB: db, Settings: settings}
}

// BindReferral records who referred a new user. The binding is first-write-
// wins: it only applies while ReferredBy is still unset, and the Referral
// row's unique index on referred_id rejects a second binding outright.
func (s *ReferralService) BindReferral(referredID, referrerID, codeUsed string) error {
	if referredID == referrerID {
		return errors.New("self-referral rejected")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("external_user_id = ? AND referred_by IS NULL", referredID).
			Update("referred_by", referrerID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			tx.Model(&models.User{}).Where("external_user_id = ?", referredID).Count(&count)
			if count == 0 {
				return ErrUserNotFound
			}
			// Already bound — never overwritten.
			return nil
		}

		ref := models.Referral{
			ID:               uuid.NewString(),
			ReferrerID:       referrerID,
			ReferredID:       referredID,
			ReferralCodeUsed: codeUsed,
			Status:           models.ReferralStatusPending,
		}
		if err := tx.Create(&ref).Error; err != nil {
			return err
		}
		log.Printf("🤝 Referral bound: %s referred by %s (code=%s)", referredID, referrerID, codeUsed)
		return nil
	})
}

// MaybeAwardBonus runs after every successful credit to the referred user.
// It pays the referrer exactly once, ever: the referral_bonus_awarded flag
// flips via a compare-and-swap UPDATE, so concurrent triggers settle to a
// single payout even though the threshold check itself is advisory.
func (s *ReferralService) MaybeAwardBonus(externalUserID string, prevTotal, newTotal int64) error {
	cfg := s.Settings.Get()
	threshold := cfg.ReferralThresholdPoints
	if prevTotal >= threshold || newTotal < threshold {
		return nil // not a first-time crossing
	}

	var user models.User
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.ReferredBy == nil || user.ReferralBonusAwarded {
		return nil
	}
	referrerID := *user.ReferredBy

	// Win the flag first; losing the race here means someone else pays.
	res := s.DB.Model(&models.User{}).
		Where("external_user_id = ? AND referral_bonus_awarded = ?", externalUserID, false).
		Update("referral_bonus_awarded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	bonus := cfg.ReferralBonusPoints
	ledger := NewLedgerService(s.DB, s.Settings)
	if _, err := ledger.Credit(referrerID, bonus, models.TransactionTypeReferralBonus,
		fmt.Sprintf("Referral bonus: %s reached %d lifetime points", user.Username, threshold)); err != nil {
		// The flag stays set — the boolean is the sole guard, and a re-run
		// here would risk double pay instead.
		return fmt.Errorf("referrer credit failed (flag already set for %s): %w", externalUserID, err)
	}

	now := time.Now()
	if err := s.DB.Model(&models.Referral{}).
		Where("referred_id = ?", externalUserID).
		Updates(map[string]interface{}{
			"status":       models.ReferralStatusBonusAwarded,
			"bonus_points": bonus,
			"awarded_at":   now,
		}).Error; err != nil {
		log.Printf("⚠️ Referral row update failed for %s: %v", externalUserID, err)
	}

	log.Printf("🎉 Referral bonus: +%d pts to %s for referring %s", bonus, referrerID, externalUserID)
	return nil
}

// GetReferrals lists the users referred by this referrer, newest first.
func (s *ReferralService) GetReferrals(referrerID string) ([]models.Referral, error) {
	var refs []models.Referral
	err := s.DB.Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&refs).Error
	return refs, err
}

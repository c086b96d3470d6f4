// services/quota.go
package services

import (
	"fmt"
	"log"
	"time"

	"reward-ledger-system/models"

	"gorm.io/gorm"
)

// QuotaService enforces the per-user, per-local-day ad watch cap. The
// counter resets lazily: the first watch of a new day sees a stale
// LastWatchResetKey and starts counting from zero again, so the midnight
// sweep in the scheduler is a convenience, not a correctness requirement.
type QuotaService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewQuotaService(db *gorm.DB, ledger *LedgerService) *QuotaService {
	return &QuotaService{DB: db, Ledger: ledger}
}

type WatchResult struct {
	NewWatchCount int   `json:"new_watch_count"`
	NewPoints     int64 `json:"new_points"`
}

// DayKey is the local calendar-day key used for lazy quota resets.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// RecordWatch counts one ad watch and credits rewardPerWatch points with
// transaction type "ad". Cap and reward are policy inputs, not constants.
//
// The count-or-reset decision is a single conditional UPDATE: the row
// matches only while under today's cap (or on a stale day key, in which
// case the counter restarts at 1), so concurrent watches cannot overshoot.
func (s *QuotaService) RecordWatch(externalUserID string, rewardPerWatch int64, dailyCap int) (*WatchResult, error) {
	if rewardPerWatch <= 0 {
		return nil, ErrInvalidAmount
	}
	today := DayKey(time.Now())

	var out WatchResult
	var credit *CreditResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("external_user_id = ? AND (last_watch_reset_key <> ? OR watch_count < ?)",
				externalUserID, today, dailyCap).
			Updates(map[string]interface{}{
				"watch_count":          gorm.Expr("CASE WHEN last_watch_reset_key = ? THEN watch_count + 1 ELSE 1 END", today),
				"last_watch_reset_key": today,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).
				Where("external_user_id = ?", externalUserID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrDailyLimitReached
		}

		var err error
		credit, err = s.Ledger.creditTx(tx, externalUserID, rewardPerWatch,
			models.TransactionTypeAd, fmt.Sprintf("Ad watch reward (%s)", today))
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
			return err
		}
		out.NewWatchCount = user.WatchCount
		out.NewPoints = user.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Ledger.fireReferralCheck(externalUserID, credit.NewTotalEarned-rewardPerWatch, credit.NewTotalEarned)

	log.Printf("📺 Ad watch %d/%d for %s (day=%s)", out.NewWatchCount, dailyCap, externalUserID, today)
	return &out, nil
}

// ResetAllWatchCounts bulk-zeroes every counter. Called by the midnight
// sweep; safe to skip entirely thanks to the lazy reset.
func (s *QuotaService) ResetAllWatchCounts() (int64, error) {
	res := s.DB.Model(&models.User{}).
		Where("watch_count > 0").
		Update("watch_count", 0)
	return res.RowsAffected, res.Error
}

// services/ledger.go
package services

import (
	"errors"
	"fmt"
	"log"

	"reward-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService is the sole authorized path for increasing a user's points
// and lifetime TotalEarned. Every change appends one immutable Transaction.
// Callers must have already established — through the offer claim tracker or
// an equivalent dedup key — that the completion has not been paid before.
type LedgerService struct {
	DB       *gorm.DB
	Settings *SettingsService
}

func NewLedgerService(db *gorm.DB, settings *SettingsService) *LedgerService {
	return &LedgerService{DB: db, Settings: settings}
}

type CreditResult struct {
	NewPoints      int64 `json:"new_points"`
	NewTotalEarned int64 `json:"new_total_earned"`
}

// Credit adds amount to the user's spendable points and TotalEarned, and
// appends a ledger Transaction. The balance change is a single conditional
// UPDATE with SQL-side increments, so concurrent credits for the same user
// are commutative and lossless.
//
// After a successful commit the referral bonus trigger runs best-effort: a
// failure there is logged and never rolls back or surfaces into the credit.
func (s *LedgerService) Credit(externalUserID string, amount int64, txType models.TransactionType, description string) (*CreditResult, error) {
	res, err := s.creditTx(s.DB, externalUserID, amount, txType, description)
	if err != nil {
		return nil, err
	}

	s.fireReferralCheck(externalUserID, res.NewTotalEarned-amount, res.NewTotalEarned)
	return res, nil
}

// creditTx performs the credit inside the given handle (a *gorm.DB or an
// open transaction). Shared with the quota and claim paths so their guard
// and the credit commit atomically.
func (s *LedgerService) creditTx(db *gorm.DB, externalUserID string, amount int64, txType models.TransactionType, description string) (*CreditResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var out CreditResult
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("external_user_id = ?", externalUserID).
			Updates(map[string]interface{}{
				"points":       gorm.Expr("points + ?", amount),
				"total_earned": gorm.Expr("total_earned + ?", amount),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var user models.User
		if err := tx.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
			return err
		}
		out.NewPoints = user.Points
		out.NewTotalEarned = user.TotalEarned

		entry := models.Transaction{
			ID:          uuid.NewString(),
			UserID:      externalUserID,
			Type:        txType,
			Points:      amount,
			Description: description,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("💰 Credited %d pts to %s (type=%s) → balance=%d, lifetime=%d",
		amount, externalUserID, txType, out.NewPoints, out.NewTotalEarned)
	return &out, nil
}

// fireReferralCheck runs the one-time referral bonus trigger after a credit.
// Fire-and-forget: errors are logged, never returned to the crediting caller.
func (s *LedgerService) fireReferralCheck(externalUserID string, prevTotal, newTotal int64) {
	refSvc := NewReferralService(s.DB, s.Settings)
	if err := refSvc.MaybeAwardBonus(externalUserID, prevTotal, newTotal); err != nil {
		log.Printf("⚠️ Referral bonus check failed for %s: %v", externalUserID, err)
	}
}

// GetUser fetches the user row by external id.
func (s *LedgerService) GetUser(externalUserID string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetTransactions returns the user's ledger entries, newest first.
func (s *LedgerService) GetTransactions(externalUserID string, page, size int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.DB.Model(&models.Transaction{}).
		Where("user_id = ?", externalUserID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.Transaction
	err := s.DB.Where("user_id = ?", externalUserID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&entries).Error
	return entries, total, err
}

// EarnedSum returns the sum of credit-type entries for the user. Must equal
// User.TotalEarned at all times.
func (s *LedgerService) EarnedSum(externalUserID string) (int64, error) {
	var sum int64
	err := s.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND type IN ?", externalUserID, models.EarningTypes).
		Select("COALESCE(SUM(points), 0)").
		Scan(&sum).Error
	return sum, err
}

// AdjustPoints is the trusted-operator override: it moves the spendable
// balance directly, bypassing dedup and referral logic, and never touches
// TotalEarned. Negative deltas refuse to push the balance below zero.
func (s *LedgerService) AdjustPoints(externalUserID string, delta int64, note string) (*models.User, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}

	var user models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.User{}).Where("external_user_id = ?", externalUserID)
		if delta < 0 {
			q = q.Where("points >= ?", -delta)
		}
		res := q.Update("points", gorm.Expr("points + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			tx.Model(&models.User{}).Where("external_user_id = ?", externalUserID).Count(&count)
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientPoints
		}

		if err := tx.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
			return err
		}

		entry := models.Transaction{
			ID:          uuid.NewString(),
			UserID:      externalUserID,
			Type:        models.TransactionTypeAdminAdjustment,
			Points:      delta,
			Description: note,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🛠️ Admin adjustment %+d pts for %s → balance=%d", delta, externalUserID, user.Points)
	return &user, nil
}

// PurgeUser hard-deletes a user and everything that hangs off them:
// transactions, offer clicks, withdrawal requests, referral rows. Admin
// surface only.
func (s *LedgerService) PurgeUser(externalUserID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if err := tx.Where("user_id = ?", externalUserID).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", externalUserID).Delete(&models.OfferClick{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", externalUserID).Delete(&models.WithdrawalRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("referred_id = ? OR referrer_id = ?", externalUserID, externalUserID).
			Delete(&models.Referral{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&user).Error; err != nil {
			return err
		}

		log.Printf("🗑️ Purged user %s and all dependent records", externalUserID)
		return nil
	})
}

// EnsureUser creates the local user row if missing (idempotent). Used by the
// sync worker and tests; a fresh row carries zero balances.
func (s *LedgerService) EnsureUser(externalUserID, username string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Username:       username,
			ReferralCode:   fmt.Sprintf("REF-%.8s", uuid.NewString()),
		}
		if err := s.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

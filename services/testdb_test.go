package services

import (
	"fmt"
	"testing"

	"reward-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB spins up an isolated in-memory database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.OfferClick{},
		&models.WithdrawalRequest{},
		&models.Referral{},
		&models.AdminSettings{},
		&models.PostbackEvent{},
		&models.OfferMirror{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// newTestStack builds the service graph over a fresh database with the
// default (env-unset) settings row: threshold 100, bonus 50, min withdrawal
// 100, 10 points per currency unit, daily ad cap 3.
func newTestStack(t *testing.T) (*gorm.DB, *SettingsService, *LedgerService) {
	t.Helper()
	db := openTestDB(t)
	settings := NewSettingsService(db)
	if err := settings.EnsureSettingsRow(); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
	return db, settings, NewLedgerService(db, settings)
}

// seedUser inserts a user row with the given balances.
func seedUser(t *testing.T, db *gorm.DB, externalID string, points, totalEarned int64) *models.User {
	t.Helper()
	user := models.User{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
		Points:         points,
		TotalEarned:    totalEarned,
		ReferralCode:   "REF-" + externalID,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", externalID, err)
	}
	return &user
}

func getUser(t *testing.T, db *gorm.DB, externalID string) *models.User {
	t.Helper()
	var user models.User
	if err := db.Where("external_user_id = ?", externalID).First(&user).Error; err != nil {
		t.Fatalf("failed to load user %s: %v", externalID, err)
	}
	return &user
}

func countTransactions(t *testing.T, db *gorm.DB, externalID string, txType models.TransactionType) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", externalID, txType).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return count
}

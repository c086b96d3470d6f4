// services/settings.go
package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"reward-ledger-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SettingsService is the read-through provider for the single AdminSettings
// row. Precedence: the DB row is authoritative; the in-memory cache serves
// reads between refreshes; env-seeded defaults apply only when the row does
// not exist yet (first boot).
type SettingsService struct {
	DB *gorm.DB

	mu     sync.RWMutex
	cached models.AdminSettings
	loaded bool
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// defaultSettings seeds the global row from env on first boot.
func defaultSettings() models.AdminSettings {
	s := models.AdminSettings{
		ID:                      models.SettingsRowID,
		AdRewardPoints:          envInt64("AD_REWARD_POINTS", 5),
		DailyAdLimit:            int(envInt64("DAILY_AD_LIMIT", 3)),
		CaptchaRewardPoints:     envInt64("CAPTCHA_REWARD_POINTS", 2),
		QuizRewardPoints:        envInt64("QUIZ_REWARD_POINTS", 3),
		ReferralThresholdPoints: envInt64("REFERRAL_THRESHOLD_POINTS", 100),
		ReferralBonusPoints:     envInt64("REFERRAL_BONUS_POINTS", 50),
		MinWithdrawAmount:       envInt64("MIN_WITHDRAW_AMOUNT", 100),
		PointsPerCurrencyUnit:   envInt64("POINTS_PER_CURRENCY_UNIT", 10),
		MinOfferDwellSeconds:    int(envInt64("MIN_OFFER_DWELL_SECONDS", 15)),
		OfferwallURL:            os.Getenv("OFFERWALL_URL"),
		VideoAdURL:              os.Getenv("VIDEO_AD_URL"),
		CaptchaSiteKey:          os.Getenv("CAPTCHA_SITE_KEY"),
		PostbackSecret:          os.Getenv("POSTBACK_SECRET"),
		OfferSyncAPIKey:         os.Getenv("OFFER_SYNC_API_KEY"),
	}
	return s
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

// EnsureSettingsRow creates the global settings row if missing (idempotent).
func (s *SettingsService) EnsureSettingsRow() error {
	var row models.AdminSettings
	err := s.DB.Where("id = ?", models.SettingsRowID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = defaultSettings()
		if err := s.DB.Create(&row).Error; err != nil {
			return err
		}
		log.Println("✅ Seeded global admin settings row from env defaults")
	} else if err != nil {
		return err
	}
	s.setCache(row)
	return nil
}

// Get returns the cached settings, falling back to a direct DB read (and,
// failing that, env defaults) when the cache was never primed.
func (s *SettingsService) Get() models.AdminSettings {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.cached
	}
	s.mu.RUnlock()

	var row models.AdminSettings
	if err := s.DB.Where("id = ?", models.SettingsRowID).First(&row).Error; err != nil {
		log.Printf("⚠️  Settings read failed, serving env defaults: %v", err)
		return defaultSettings()
	}
	s.setCache(row)
	return row
}

func (s *SettingsService) setCache(row models.AdminSettings) {
	s.mu.Lock()
	s.cached = row
	s.loaded = true
	s.mu.Unlock()
}

// Refresh re-reads the authoritative row into the cache.
func (s *SettingsService) Refresh() error {
	var row models.AdminSettings
	if err := s.DB.Where("id = ?", models.SettingsRowID).First(&row).Error; err != nil {
		return err
	}
	s.setCache(row)
	return nil
}

// StartRefreshLoop polls the settings row so admin writes propagate without
// a restart.
func (s *SettingsService) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("⏹️ Settings refresh loop stopped")
				return
			case <-ticker.C:
				if err := s.Refresh(); err != nil {
					log.Printf("❌ Settings refresh failed: %v", err)
				}
			}
		}
	}()
}

// --- Admin Handlers ---

// GetSettings returns the global settings row (Admin only).
func (s *SettingsService) GetSettings(c *fiber.Ctx) error {
	return c.JSON(s.Get())
}

// UpdateSettings applies a partial update to the global settings row and
// refreshes the cache immediately (Admin only).
func (s *SettingsService) UpdateSettings(c *fiber.Ctx) error {
	var req struct {
		AdRewardPoints          *int64  `json:"ad_reward_points"`
		DailyAdLimit            *int    `json:"daily_ad_limit"`
		CaptchaRewardPoints     *int64  `json:"captcha_reward_points"`
		QuizRewardPoints        *int64  `json:"quiz_reward_points"`
		ReferralThresholdPoints *int64  `json:"referral_threshold_points"`
		ReferralBonusPoints     *int64  `json:"referral_bonus_points"`
		MinWithdrawAmount       *int64  `json:"min_withdraw_amount"`
		PointsPerCurrencyUnit   *int64  `json:"points_per_currency_unit"`
		MinOfferDwellSeconds    *int    `json:"min_offer_dwell_seconds"`
		OfferwallURL            *string `json:"offerwall_url"`
		VideoAdURL              *string `json:"video_ad_url"`
		CaptchaSiteKey          *string `json:"captcha_site_key"`
		PostbackSecret          *string `json:"postback_secret"`
		OfferSyncAPIKey         *string `json:"offer_sync_api_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var row models.AdminSettings
	if err := s.DB.Where("id = ?", models.SettingsRowID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Settings not initialized"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if req.AdRewardPoints != nil {
		row.AdRewardPoints = *req.AdRewardPoints
	}
	if req.DailyAdLimit != nil {
		row.DailyAdLimit = *req.DailyAdLimit
	}
	if req.CaptchaRewardPoints != nil {
		row.CaptchaRewardPoints = *req.CaptchaRewardPoints
	}
	if req.QuizRewardPoints != nil {
		row.QuizRewardPoints = *req.QuizRewardPoints
	}
	if req.ReferralThresholdPoints != nil {
		row.ReferralThresholdPoints = *req.ReferralThresholdPoints
	}
	if req.ReferralBonusPoints != nil {
		row.ReferralBonusPoints = *req.ReferralBonusPoints
	}
	if req.MinWithdrawAmount != nil {
		row.MinWithdrawAmount = *req.MinWithdrawAmount
	}
	if req.PointsPerCurrencyUnit != nil {
		row.PointsPerCurrencyUnit = *req.PointsPerCurrencyUnit
	}
	if req.MinOfferDwellSeconds != nil {
		row.MinOfferDwellSeconds = *req.MinOfferDwellSeconds
	}
	if req.OfferwallURL != nil {
		row.OfferwallURL = *req.OfferwallURL
	}
	if req.VideoAdURL != nil {
		row.VideoAdURL = *req.VideoAdURL
	}
	if req.CaptchaSiteKey != nil {
		row.CaptchaSiteKey = *req.CaptchaSiteKey
	}
	if req.PostbackSecret != nil {
		row.PostbackSecret = *req.PostbackSecret
	}
	if req.OfferSyncAPIKey != nil {
		row.OfferSyncAPIKey = *req.OfferSyncAPIKey
	}

	if err := s.DB.Save(&row).Error; err != nil {
		log.Printf("DB Error updating settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update settings"})
	}
	s.setCache(row)

	return c.JSON(row)
}

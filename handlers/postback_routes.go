// handlers/postback_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"reward-ledger-system/models"
	"reward-ledger-system/services"

	"github.com/google/uuid"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// providerTxTypes maps a postback provider slug to the ledger type its
// completions credit as.
var providerTxTypes = map[string]models.TransactionType{
	"offerwall": models.TransactionTypeTask,
	"video":     models.TransactionTypeAd,
	"quiz":      models.TransactionTypeQuiz,
	"captcha":   models.TransactionTypeCaptcha,
	"sms":       models.TransactionTypeSMSVerification,
	"game":      models.TransactionTypeGameTask,
}

// SetupPostbackRoutes registers the inbound server-to-server postback
// endpoints. Providers retry aggressively on anything but 200, so once a
// payload is structurally accepted we always answer 200 — downstream
// crediting failures are recorded and logged, never surfaced
// (acknowledged-but-log-failure).
//
// At-most-once crediting rides on the unique (provider, event_id) index on
// postback_events: the insert is the idempotency check.
func SetupPostbackRoutes(app *fiber.App, ledger *services.LedgerService, settings *services.SettingsService, db *gorm.DB) {
	handle := func(c *fiber.Ctx) error {
		provider := c.Params("provider")
		txType, known := providerTxTypes[provider]
		if !known {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown provider"})
		}

		// Providers send GET or POST; read both surfaces.
		param := func(key string) string {
			if v := c.Query(key); v != "" {
				return v
			}
			return strings.TrimSpace(c.FormValue(key))
		}

		cfg := settings.Get()
		if cfg.PostbackSecret != "" && param("secret") != cfg.PostbackSecret {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "bad secret"})
		}

		userID := param("user_id")
		eventID := param("txn_id")
		offerID := param("offer_id")
		amountStr := param("amount")
		amount, err := strconv.ParseInt(amountStr, 10, 64)

		// Structural validation — the only path to a non-200.
		if userID == "" || eventID == "" || err != nil || amount <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id, txn_id and positive amount required"})
		}

		event := models.PostbackEvent{
			ID:       uuid.NewString(),
			Provider: provider,
			EventID:  eventID,
			UserID:   userID,
			OfferID:  offerID,
			Points:   amount,
			Status:   models.PostbackStatusCredited,
		}
		if err := db.Create(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Provider retry: already handled, ack again.
				log.Printf("📮 [POSTBACK] Duplicate event %s/%s, acked without credit", provider, eventID)
			} else {
				log.Printf("❌ [POSTBACK] Event insert failed %s/%s: %v", provider, eventID, err)
			}
			return c.SendString("OK")
		}

		if _, err := ledger.Credit(userID, amount, txType, "Provider postback: "+provider); err != nil {
			log.Printf("❌ [POSTBACK] Credit failed for %s/%s (user=%s): %v", provider, eventID, userID, err)
			db.Model(&event).Updates(map[string]interface{}{
				"status": models.PostbackStatusFailed,
				"note":   err.Error(),
			})
			return c.SendString("OK")
		}

		log.Printf("📮 [POSTBACK] Credited %d pts via %s (event=%s, user=%s)", amount, provider, eventID, userID)
		return c.SendString("OK")
	}

	app.Get("/postback/:provider", handle)
	app.Post("/postback/:provider", handle)
}

// handlers/admin_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"reward-ledger-system/middleware"
	"reward-ledger-system/models"
	"reward-ledger-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupAdminRoutes wires the trusted-operator surface. Everything here is
// explicitly exempt from the dedup/credit invariants: these are overrides,
// not earnings.
func SetupAdminRoutes(app *fiber.App,
	ledger *services.LedgerService,
	withdrawals *services.WithdrawalService,
	settings *services.SettingsService,
	export *services.ExportService,
	db *gorm.DB,
) {
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.AdminOnlyMiddleware())

	admin.Get("/settings", settings.GetSettings)
	admin.Put("/settings", settings.UpdateSettings)

	// --- Withdrawal queue ---

	admin.Get("/withdrawals", func(c *fiber.Ctx) error {
		status := models.WithdrawalStatus(c.Query("status", string(models.WithdrawalStatusPending)))
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		reqs, err := withdrawals.GetByStatus(status, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch withdrawals"})
		}
		return c.JSON(reqs)
	})

	admin.Post("/withdrawals/:id/decide", func(c *fiber.Ctx) error {
		var req struct {
			Decision string `json:"decision"` // "approved" | "rejected"
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Decision != string(models.WithdrawalStatusApproved) &&
			req.Decision != string(models.WithdrawalStatusRejected) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "decision must be approved or rejected"})
		}

		wr, err := withdrawals.Decide(c.Params("id"), req.Decision == string(models.WithdrawalStatusApproved))
		if err != nil {
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "request not found"})
			case errors.Is(err, services.ErrAlreadyProcessed):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "request already processed"})
			default:
				log.Printf("DB Error deciding withdrawal: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to process decision"})
			}
		}
		return c.JSON(wr)
	})

	// --- User moderation ---

	admin.Get("/users/:id", func(c *fiber.Ctx) error {
		user, err := ledger.GetUser(c.Params("id"))
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(user)
	})

	admin.Post("/users/:id/adjust", func(c *fiber.Ctx) error {
		var req struct {
			Delta int64  `json:"delta"`
			Note  string `json:"note"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		user, err := ledger.AdjustPoints(c.Params("id"), req.Delta, req.Note)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
			case errors.Is(err, services.ErrInsufficientPoints):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "adjustment would push balance below zero"})
			case errors.Is(err, services.ErrInvalidAmount):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "delta must be non-zero"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to adjust points"})
			}
		}
		return c.JSON(fiber.Map{"message": "points adjusted", "points": user.Points})
	})

	admin.Patch("/users/:id/ban", func(c *fiber.Ctx) error {
		var req struct {
			Banned bool `json:"banned"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		res := db.Model(&models.User{}).
			Where("external_user_id = ?", c.Params("id")).
			Update("is_banned", req.Banned)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.JSON(fiber.Map{"message": "OK", "banned": req.Banned})
	})

	admin.Patch("/users/:id/disable", func(c *fiber.Ctx) error {
		var req struct {
			Disabled bool `json:"disabled"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		res := db.Model(&models.User{}).
			Where("external_user_id = ?", c.Params("id")).
			Update("is_disabled", req.Disabled)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.JSON(fiber.Map{"message": "OK", "disabled": req.Disabled})
	})

	admin.Delete("/users/:id", func(c *fiber.Ctx) error {
		if err := ledger.PurgeUser(c.Params("id")); err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
			}
			log.Printf("DB Error purging user: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to purge user"})
		}
		return c.JSON(fiber.Map{"message": "user purged"})
	})

	// --- Ledger audit export ---

	admin.Post("/export/transactions", func(c *fiber.Ctx) error {
		var req struct {
			From time.Time `json:"from"`
			To   time.Time `json:"to"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.From.IsZero() || req.To.IsZero() || !req.To.After(req.From) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from/to range required"})
		}

		url, err := export.ExportTransactions(req.From, req.To)
		if err != nil {
			log.Printf("Export failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
		}
		return c.JSON(fiber.Map{"url": url})
	})
}

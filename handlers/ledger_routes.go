// handlers/ledger_routes.go
package handlers

import (
	"errors"
	"strconv"

	"reward-ledger-system/middleware"
	"reward-ledger-system/models"
	"reward-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// requireActiveUser loads the caller's account and rejects banned or
// disabled users before any earning path runs.
func requireActiveUser(c *fiber.Ctx, ledger *services.LedgerService) (*models.User, error) {
	userID := c.Locals("user_id").(string)
	user, err := ledger.GetUser(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if user.IsBanned || user.IsDisabled {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account is not allowed to earn"})
	}
	return user, nil
}

func SetupLedgerRoutes(app *fiber.App,
	ledger *services.LedgerService,
	quota *services.QuotaService,
	offers *services.OfferService,
	referrals *services.ReferralService,
	withdrawals *services.WithdrawalService,
	settings *services.SettingsService,
	authClient *services.AuthServiceClient,
) {
	// SSE stream authenticates via query params (EventSource cannot set headers).
	app.Get("/user/transactions/stream", middleware.SSEAuthMiddleware(authClient), ledger.StreamUserTransactionsSSE)

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/balance", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		user, err := ledger.GetUser(userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(fiber.Map{
			"points":          user.Points,
			"total_earned":    user.TotalEarned,
			"total_withdrawn": user.TotalWithdrawn,
			"watch_count":     user.WatchCount,
			"referral_code":   user.ReferralCode,
		})
	})

	secured.Get("/user/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		entries, total, err := ledger.GetTransactions(userID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch transactions"})
		}
		return c.JSON(fiber.Map{
			"transactions": entries,
			"page":         page,
			"size":         size,
			"total":        total,
		})
	})

	// --- Completion signal adapters (thin surfaces over the crediting engine) ---

	// Rewarded video / ad watch: quota-capped per local day.
	secured.Post("/earn/watch", func(c *fiber.Ctx) error {
		user, ferr := requireActiveUser(c, ledger)
		if ferr != nil || user == nil {
			return ferr
		}
		cfg := settings.Get()
		res, err := quota.RecordWatch(user.ExternalUserID, cfg.AdRewardPoints, cfg.DailyAdLimit)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrDailyLimitReached):
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "daily ad watch limit reached, come back tomorrow",
				})
			case errors.Is(err, services.ErrUserNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not award points"})
			}
		}
		return c.JSON(fiber.Map{
			"message":     "points added",
			"watch_count": res.NewWatchCount,
			"new_points":  res.NewPoints,
		})
	})

	secured.Post("/earn/captcha", func(c *fiber.Ctx) error {
		user, ferr := requireActiveUser(c, ledger)
		if ferr != nil || user == nil {
			return ferr
		}
		cfg := settings.Get()
		res, err := ledger.Credit(user.ExternalUserID, cfg.CaptchaRewardPoints,
			models.TransactionTypeCaptcha, "Captcha solved")
		if err != nil {
			return creditErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "points added", "new_points": res.NewPoints})
	})

	secured.Post("/earn/quiz", func(c *fiber.Ctx) error {
		user, ferr := requireActiveUser(c, ledger)
		if ferr != nil || user == nil {
			return ferr
		}
		cfg := settings.Get()
		res, err := ledger.Credit(user.ExternalUserID, cfg.QuizRewardPoints,
			models.TransactionTypeQuiz, "Quiz completed")
		if err != nil {
			return creditErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "points added", "new_points": res.NewPoints})
	})

	// --- Click-then-claim flow for externally-verified offers ---

	secured.Post("/offers/:offer_id/click", func(c *fiber.Ctx) error {
		user, ferr := requireActiveUser(c, ledger)
		if ferr != nil || user == nil {
			return ferr
		}
		var req struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		clickID, err := offers.TrackClick(user.ExternalUserID, c.Params("offer_id"), req.Name, req.URL)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to track click"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"click_id": clickID})
	})

	secured.Get("/offers/:offer_id/claimed", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		claimed, err := offers.IsClaimed(userID, c.Params("offer_id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(fiber.Map{"claimed": claimed})
	})

	secured.Post("/offers/:offer_id/claim", func(c *fiber.Ctx) error {
		user, ferr := requireActiveUser(c, ledger)
		if ferr != nil || user == nil {
			return ferr
		}
		var req struct {
			Name         string `json:"name"`
			DwellSeconds int    `json:"dwell_seconds"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		cfg := settings.Get()
		// The completion signal is only a best-effort hint; the dwell-time
		// floor is the accepted false-positive tradeoff for providers with
		// no reliable callback.
		if req.DwellSeconds < cfg.MinOfferDwellSeconds {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offer was not open long enough to verify completion",
			})
		}

		offerID := c.Params("offer_id")
		// Offers missing from the mirrored catalog pay the base ad rate.
		reward := offers.ResolveRewardPoints(offerID, cfg.AdRewardPoints)
		res, err := offers.Claim(user.ExternalUserID, offerID, req.Name, reward)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrAlreadyClaimed):
				// Desired end state already holds — present success.
				return c.JSON(fiber.Map{"message": "already credited", "already_claimed": true})
			case errors.Is(err, services.ErrNoClickFound):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "no recorded attempt for this offer — open it first",
				})
			default:
				return creditErrorResponse(c, err)
			}
		}
		return c.JSON(fiber.Map{
			"message":        "points added",
			"points_awarded": res.PointsAwarded,
			"new_points":     res.NewPoints,
		})
	})

	// --- Withdrawals ---

	secured.Post("/withdrawals", func(c *fiber.Ctx) error {
		user, ferr := requireActiveUser(c, ledger)
		if ferr != nil || user == nil {
			return ferr
		}
		var req struct {
			Amount int64  `json:"amount"`
			UPI    string `json:"upi"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.UPI == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payout destination (upi) required"})
		}

		wr, err := withdrawals.CreateRequest(user.ExternalUserID, req.Amount, req.UPI)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrBelowMinimum):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "amount is below the minimum withdrawal",
				})
			case errors.Is(err, services.ErrInsufficientPoints):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "not enough points for this withdrawal",
				})
			case errors.Is(err, services.ErrInvalidAmount):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create request"})
			}
		}
		return c.Status(fiber.StatusCreated).JSON(wr)
	})

	secured.Get("/withdrawals", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		reqs, err := withdrawals.GetUserRequests(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch requests"})
		}
		return c.JSON(reqs)
	})

	// --- Referrals ---

	secured.Get("/user/referrals", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		refs, err := referrals.GetReferrals(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch referrals"})
		}
		return c.JSON(refs)
	})
}

// creditErrorResponse maps ledger-boundary failures onto user-facing
// responses: hard failures surface as "could not award points".
func creditErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
	case errors.Is(err, services.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid reward amount"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not award points"})
	}
}

// reward-ledger-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"reward-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` and `device_id` from query params via
// the AuthServiceClient. EventSource cannot set headers, so the credit
// stream authenticates through the query string instead of the Gateway
// headers.
//
// Usage:
//
//	app.Get("/user/transactions/stream", middleware.SSEAuthMiddleware(authClient), ledgerService.StreamUserTransactionsSSE)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("token")))
		deviceID := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("device_id")))

		if accessToken == "" || deviceID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params on %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("user_roles", resp.Roles)

		return c.Next()
	}
}

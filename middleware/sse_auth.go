package middleware

import (
	"strings"

	"doin-challenge/logger"
	"doin-challenge/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SSEAuthMiddleware authenticates event streams. EventSource clients cannot set
// headers, so the session token may also come from the `token` query parameter.
//
// Usage:
//
//	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(manager), handler)
func SSEAuthMiddleware(manager *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) != "" {
			return c.Next()
		}

		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing token",
			})
		}
		claims, err := manager.Parse(token)
		if err != nil {
			logger.Warn("[SSEAuth] ❌ token validation failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		attachClaims(c, claims)
		logger.Debug("[SSEAuth] ✅ stream authenticated", zap.String("user_id", claims.UserID))
		return c.Next()
	}
}

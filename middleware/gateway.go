package middleware

import (
	"crypto/subtle"

	"doin-challenge/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const ServiceTokenHeader = "X-Service-Token"

// GatewayAuthMiddleware only lets through requests carrying the shared service token.
// An empty token disables the check, for local runs without a gateway in front.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		logger.Warn("⚠️ [GATEWAY_AUTH] gateway.token not set, accepting requests without a service token")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		token := c.Get(ServiceTokenHeader)
		if token == "" {
			logger.Warn("🚫 [GATEWAY_AUTH] missing service token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			logger.Warn("❌ [GATEWAY_AUTH] invalid service token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}

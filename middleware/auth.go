package middleware

import (
	"strings"

	"doin-challenge/logger"
	"doin-challenge/models"
	"doin-challenge/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID    = "user_id"
	LocalUserRole  = "user_role"
	LocalClaims    = "session_claims"
	LocalRequestID = "request_id"
)

// RoleLookup returns the stored role of a user.
type RoleLookup func(userID string) (models.UserRole, error)

// UserContextMiddleware reads the session token from the Authorization header
// (Bearer) or the session cookie and attaches the user to the context.
// Requests without a valid token continue anonymously; RequireUser rejects them.
func UserContextMiddleware(manager *session.Manager, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" && cookieName != "" {
			token = c.Cookies(cookieName)
		}
		if token == "" {
			return c.Next()
		}

		claims, err := manager.Parse(token)
		if err != nil {
			logger.Debug("[USER_CTX] ignoring invalid session token", zap.String("path", c.Path()), zap.Error(err))
			return c.Next()
		}
		attachClaims(c, claims)
		return c.Next()
	}
}

func attachClaims(c *fiber.Ctx, claims *session.Claims) {
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUserRole, models.UserRole(claims.Role))
	c.Locals(LocalClaims, claims)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireUser rejects requests without an authenticated user.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}

// RequireAdmin checks the role stored for the user, so a role change applies
// without waiting for a new token.
func RequireAdmin(lookup RoleLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		role, err := lookup(userID)
		if err != nil {
			logger.Warn("🚫 [ADMIN] role lookup failed", zap.String("user_id", userID), zap.Error(err))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
			})
		}
		if role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
			})
		}
		c.Locals(LocalUserRole, role)
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func UserRole(c *fiber.Ctx) models.UserRole {
	role, _ := c.Locals(LocalUserRole).(models.UserRole)
	return role
}

func Claims(c *fiber.Ctx) *session.Claims {
	claims, _ := c.Locals(LocalClaims).(*session.Claims)
	return claims
}

func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalRequestID).(string)
	return id
}

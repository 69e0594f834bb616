package handlers

import (
	"time"

	"doin-challenge/logger"
	"doin-challenge/middleware"
	"doin-challenge/models"
	"doin-challenge/services"
	"doin-challenge/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// SetupAuthRoutes exchanges a provider profile for a session token.
// Login trusts the profile it is given; it must only be reachable through the gateway.
func SetupAuthRoutes(app fiber.Router, users *services.UserService, manager *session.Manager, cookieName string) {
	issue := func(c *fiber.Ctx, user *models.User) error {
		token, expiresAt, err := manager.Issue(user.ID, user.OpenID, string(user.Role))
		if err != nil {
			return respondError(c, err)
		}
		if cookieName != "" {
			c.Cookie(&fiber.Cookie{
				Name:     cookieName,
				Value:    token,
				Path:     "/",
				Expires:  expiresAt,
				HTTPOnly: true,
				Secure:   c.Protocol() == "https",
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		return c.JSON(sessionResponse{Token: token, ExpiresAt: expiresAt, User: user})
	}

	app.Post("/auth/login", func(c *fiber.Ctx) error {
		var in services.LoginInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		user, err := users.Login(in)
		if err != nil {
			return respondError(c, err)
		}
		return issue(c, user)
	})

	app.Get("/auth/me", middleware.RequireUser(), func(c *fiber.Ctx) error {
		user, err := users.Get(middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		res := fiber.Map{"user": user}
		if claims := middleware.Claims(c); claims != nil && claims.ExpiresAt != nil {
			res["expires_at"] = claims.ExpiresAt.Time
			res["needs_refresh"] = manager.NeedsRefresh(claims)
		}
		return c.JSON(res)
	})

	// refresh reissues with the stored role
	app.Post("/auth/refresh", middleware.RequireUser(), func(c *fiber.Ctx) error {
		user, err := users.Get(middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		logger.Debug("[AUTH] session refreshed", zap.String("user_id", user.ID))
		return issue(c, user)
	})

	app.Post("/auth/logout", func(c *fiber.Ctx) error {
		if cookieName != "" {
			c.ClearCookie(cookieName)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/services"
	"doin-challenge/session"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app fiber.Router, notifications *services.NotificationService, manager *session.Manager) {
	// the stream authenticates itself so EventSource clients can pass ?token=
	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(manager), notifications.StreamNotificationsSSE)

	auth := app.Group("/notifications", middleware.RequireUser())
	auth.Get("/", func(c *fiber.Ctx) error {
		page, err := notifications.List(middleware.UserID(c), c.Query("cursor"), c.QueryInt("limit", 0))
		return reply(c, page, err)
	})
	auth.Get("/unread-count", func(c *fiber.Ctx) error {
		n, err := notifications.UnreadCount(middleware.UserID(c))
		return reply(c, fiber.Map{"count": n}, err)
	})
	auth.Post("/read-all", func(c *fiber.Ctx) error {
		n, err := notifications.MarkAllRead(middleware.UserID(c))
		return reply(c, fiber.Map{"updated": n}, err)
	})
	auth.Post("/:id/read", func(c *fiber.Ctx) error {
		return noContent(c, notifications.MarkRead(middleware.UserID(c), c.Params("id")))
	})

	auth.Get("/settings/:challengeId", func(c *fiber.Ctx) error {
		s, err := notifications.Settings(middleware.UserID(c), c.Params("challengeId"))
		return reply(c, s, err)
	})
	auth.Put("/settings/:challengeId", func(c *fiber.Ctx) error {
		var in services.SettingsInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		s, err := notifications.UpdateSettings(middleware.UserID(c), c.Params("challengeId"), in)
		return reply(c, s, err)
	})
}

package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app fiber.Router, users *services.UserService) {
	app.Get("/users/search", func(c *fiber.Ctx) error {
		items, total, err := users.Search(c.Query("q"), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
		return reply(c, fiber.Map{"items": items, "total_count": total}, err)
	})
	app.Get("/profiles/:id", func(c *fiber.Ctx) error {
		p, err := users.PublicProfile(c.Params("id"))
		return reply(c, p, err)
	})
	app.Get("/profiles/:id/oshikatsu", func(c *fiber.Ctx) error {
		stats, err := users.Oshikatsu(c.Params("id"))
		return reply(c, stats, err)
	})
	app.Put("/profiles/me", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.ProfileUpdate
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		u, err := users.UpdateProfile(middleware.UserID(c), in)
		return reply(c, u, err)
	})
}

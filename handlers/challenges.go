package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app fiber.Router, svc *services.Services) {
	challenges := svc.Challenges

	// 🔓 Public
	app.Get("/challenges", func(c *fiber.Ctx) error {
		page, err := challenges.List(services.ListQuery{
			Cursor:     c.QueryInt("cursor", 0),
			Limit:      c.QueryInt("limit", 0),
			Filter:     c.Query("filter"),
			Search:     c.Query("search"),
			CategoryID: c.Query("category_id"),
		})
		return reply(c, page, err)
	})
	app.Get("/challenges/trending", func(c *fiber.Ctx) error {
		items, err := challenges.Trending(c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/challenges/mine", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := challenges.Mine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id", func(c *fiber.Ctx) error {
		detail, err := challenges.Get(actor(c), c.Params("id"))
		return reply(c, detail, err)
	})
	app.Get("/challenges/:id/stats", func(c *fiber.Ctx) error {
		history, err := svc.Stats.History(c.Params("id"), c.QueryInt("limit", 0))
		return reply(c, history, err)
	})

	// 🔐 Host operations
	app.Post("/challenges", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.ChallengeInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		ch, err := challenges.Create(actor(c), in)
		return created(c, ch, err)
	})
	app.Put("/challenges/:id", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.ChallengeInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		ch, err := challenges.Update(actor(c), c.Params("id"), in)
		return reply(c, ch, err)
	})
	app.Delete("/challenges/:id", middleware.RequireUser(), func(c *fiber.Ctx) error {
		return noContent(c, challenges.Delete(actor(c), c.Params("id"), c.Query("reason")))
	})
	app.Post("/challenges/:id/cover", middleware.RequireUser(), func(c *fiber.Ctx) error {
		fh, err := c.FormFile("cover")
		if err != nil {
			return badRequest(c, err)
		}
		url, err := challenges.UploadCover(c.UserContext(), actor(c), c.Params("id"), fh)
		return reply(c, fiber.Map{"cover_image_url": url}, err)
	})
}

func SetupCategoryRoutes(app fiber.Router, svc *services.Services, admin fiber.Handler) {
	categories := svc.Categories

	app.Get("/categories", func(c *fiber.Ctx) error {
		items, err := categories.List()
		return reply(c, items, err)
	})
	app.Get("/categories/:id", func(c *fiber.Ctx) error {
		cat, err := categories.Get(c.Params("id"))
		return reply(c, cat, err)
	})
	app.Get("/categories/:id/challenges", func(c *fiber.Ctx) error {
		if _, err := categories.Get(c.Params("id")); err != nil {
			return respondError(c, err)
		}
		items, err := svc.Challenges.ByCategory(c.Params("id"), c.QueryInt("limit", 0))
		return reply(c, items, err)
	})

	// 🔐 Admin
	app.Post("/categories", admin, func(c *fiber.Ctx) error {
		var in services.CategoryInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		cat, err := categories.Create(in)
		return created(c, cat, err)
	})
	app.Put("/categories/:id", admin, func(c *fiber.Ctx) error {
		var in services.CategoryInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		cat, err := categories.Update(c.Params("id"), in)
		return reply(c, cat, err)
	})
	app.Delete("/categories/:id", admin, func(c *fiber.Ctx) error {
		return noContent(c, categories.Delete(c.Params("id")))
	})
}

func SetupTemplateRoutes(app fiber.Router, templates *services.TemplateService) {
	app.Get("/templates/public", func(c *fiber.Ctx) error {
		items, err := templates.ListPublic(c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/templates/mine", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := templates.ListMine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/templates/:id", func(c *fiber.Ctx) error {
		t, err := templates.Get(actor(c), c.Params("id"))
		return reply(c, t, err)
	})
	app.Post("/templates", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.TemplateInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		t, err := templates.Create(actor(c), in)
		return created(c, t, err)
	})
	app.Put("/templates/:id", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.TemplateInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		t, err := templates.Update(actor(c), c.Params("id"), in)
		return reply(c, t, err)
	})
	app.Delete("/templates/:id", middleware.RequireUser(), func(c *fiber.Ctx) error {
		return noContent(c, templates.Delete(actor(c), c.Params("id")))
	})
	app.Post("/templates/:id/use", func(c *fiber.Ctx) error {
		if _, err := templates.Get(actor(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return noContent(c, templates.IncrementUseCount(c.Params("id")))
	})
}

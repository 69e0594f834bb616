// handlers/progression_routes.go
package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressionRoutes covers achievements, badges, rankings, personal stats and achievement pages.
func SetupProgressionRoutes(app fiber.Router, svc *services.Services) {
	progression := svc.Progression

	// 🔓 Catalogs and public boards
	app.Get("/achievements", func(c *fiber.Ctx) error {
		items, err := progression.Catalog()
		return reply(c, items, err)
	})
	app.Get("/badges", func(c *fiber.Ctx) error {
		items, err := svc.Badges.List()
		return reply(c, items, err)
	})
	app.Get("/rankings/contributors", func(c *fiber.Ctx) error {
		period := services.RankingPeriod(c.Query("period", string(services.PeriodAll)))
		items, err := svc.Rankings.Contributors(period, c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/rankings/challenges", func(c *fiber.Ctx) error {
		items, err := svc.Rankings.Challenges(c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/rankings/hosts", func(c *fiber.Ctx) error {
		items, err := svc.Rankings.Hosts(c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/achievement-pages", func(c *fiber.Ctx) error {
		items, err := svc.AchievementPages.ListPublic(c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/achievement-page", func(c *fiber.Ctx) error {
		page, err := svc.AchievementPages.Get(actor(c), c.Params("id"))
		return reply(c, page, err)
	})

	// 🔐 Secured routes
	secured := middleware.RequireUser()

	// recomputed on read
	app.Get("/user/progress", secured, func(c *fiber.Ctx) error {
		prog, completed, err := progression.Refresh(middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"progress":       prog,
			"newly_complete": completed,
		})
	})
	app.Get("/achievements/mine", secured, func(c *fiber.Ctx) error {
		items, err := progression.Mine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/achievements/points", secured, func(c *fiber.Ctx) error {
		points, err := progression.Points(middleware.UserID(c))
		return reply(c, fiber.Map{"points": points}, err)
	})
	app.Get("/badges/mine", secured, func(c *fiber.Ctx) error {
		items, err := svc.Badges.Mine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/rankings/me", secured, func(c *fiber.Ctx) error {
		period := services.RankingPeriod(c.Query("period", string(services.PeriodAll)))
		pos, err := svc.Rankings.MyPosition(middleware.UserID(c), period)
		return reply(c, pos, err)
	})
	app.Get("/stats/me", secured, func(c *fiber.Ctx) error {
		stats, err := svc.Stats.User(middleware.UserID(c))
		return reply(c, stats, err)
	})
	app.Get("/stats/me/activity", secured, func(c *fiber.Ctx) error {
		activity, err := svc.Stats.Activity(middleware.UserID(c))
		return reply(c, activity, err)
	})

	app.Post("/challenges/:id/achievement-page", secured, func(c *fiber.Ctx) error {
		var in services.AchievementPageInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		page, err := svc.AchievementPages.Create(actor(c), c.Params("id"), in)
		return created(c, page, err)
	})
	app.Put("/challenges/:id/achievement-page", secured, func(c *fiber.Ctx) error {
		var in services.AchievementPageInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		page, err := svc.AchievementPages.Update(actor(c), c.Params("id"), in)
		return reply(c, page, err)
	})
	app.Post("/challenges/:id/achievement-page/image", secured, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return badRequest(c, err)
		}
		url, err := svc.AchievementPages.UploadImage(c.UserContext(), actor(c), c.Params("id"), fh)
		return reply(c, fiber.Map{"image_url": url}, err)
	})
}

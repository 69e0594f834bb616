package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

func SetupParticipationRoutes(app fiber.Router, participations *services.ParticipationService) {
	// 🔓 Joining works signed in or anonymously; the optional user is read from the session.
	app.Post("/participations", func(c *fiber.Ctx) error {
		var in services.ParticipationInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		a := actor(c)
		if !a.Authenticated() {
			p, err := participations.CreateAnonymous(in)
			return created(c, p, err)
		}
		p, err := participations.Create(a, in)
		return created(c, p, err)
	})
	app.Post("/participations/anonymous", func(c *fiber.Ctx) error {
		var in services.ParticipationInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		p, err := participations.CreateAnonymous(in)
		return created(c, p, err)
	})
	app.Get("/participations/mine", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := participations.Mine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/participations/:id", func(c *fiber.Ctx) error {
		p, err := participations.Get(c.Params("id"))
		return reply(c, p, err)
	})
	app.Get("/participations/:id/companions", func(c *fiber.Ctx) error {
		items, err := participations.Companions(c.Params("id"))
		return reply(c, items, err)
	})

	app.Put("/participations/:id", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.ParticipationUpdate
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		p, err := participations.Update(actor(c), c.Params("id"), in)
		return reply(c, p, err)
	})
	app.Delete("/participations/:id", middleware.RequireUser(), func(c *fiber.Ctx) error {
		return noContent(c, participations.Delete(actor(c), c.Params("id")))
	})
	app.Post("/participations/:id/cancel", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.CancelInput
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&in); err != nil {
				return badRequest(c, err)
			}
		}
		res, err := participations.Cancel(actor(c), c.Params("id"), in)
		return reply(c, res, err)
	})

	// per challenge
	app.Get("/challenges/:id/participations", func(c *fiber.Ctx) error {
		items, err := participations.ListByChallenge(c.Params("id"))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/companions", func(c *fiber.Ctx) error {
		items, err := participations.ChallengeCompanions(c.Params("id"))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/prefectures", func(c *fiber.Ctx) error {
		items, err := participations.PrefectureStats(c.Params("id"))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/prefectures/ranking", func(c *fiber.Ctx) error {
		items, err := participations.PrefectureRanking(c.Params("id"))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/contributors", func(c *fiber.Ctx) error {
		items, err := participations.ContributionRanking(c.Params("id"), c.QueryInt("limit", 0))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/heatmap", func(c *fiber.Ctx) error {
		m, err := participations.Heatmap(c.Params("id"))
		return reply(c, m, err)
	})
}

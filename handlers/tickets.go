package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/models"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTicketRoutes(app fiber.Router, tickets *services.TicketService) {
	app.Get("/challenges/:id/ticket-transfers", func(c *fiber.Ctx) error {
		items, err := tickets.ListByChallenge(c.Params("id"))
		return reply(c, items, err)
	})

	auth := middleware.RequireUser()
	app.Post("/ticket-transfers", auth, func(c *fiber.Ctx) error {
		var in services.TransferInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		res, err := tickets.CreateTransfer(actor(c), in)
		return created(c, res, err)
	})
	app.Get("/ticket-transfers/mine", auth, func(c *fiber.Ctx) error {
		items, err := tickets.Mine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Put("/ticket-transfers/:id/status", auth, func(c *fiber.Ctx) error {
		var body struct {
			Status models.TicketTransferStatus `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, err)
		}
		t, err := tickets.UpdateStatus(actor(c), c.Params("id"), body.Status)
		return reply(c, t, err)
	})
	app.Post("/ticket-transfers/:id/cancel", auth, func(c *fiber.Ctx) error {
		t, err := tickets.Cancel(actor(c), c.Params("id"))
		return reply(c, t, err)
	})

	// ⏳ Waitlist
	app.Post("/ticket-waitlist", auth, func(c *fiber.Ctx) error {
		var in services.WaitlistInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		w, err := tickets.AddToWaitlist(actor(c), in)
		return created(c, w, err)
	})
	app.Delete("/ticket-waitlist/:challengeId", auth, func(c *fiber.Ctx) error {
		return noContent(c, tickets.RemoveFromWaitlist(actor(c), c.Params("challengeId")))
	})
	app.Get("/ticket-waitlist/mine", auth, func(c *fiber.Ctx) error {
		items, err := tickets.MyWaitlist(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/ticket-waitlist/:challengeId/status", auth, func(c *fiber.Ctx) error {
		on, err := tickets.IsOnWaitlist(middleware.UserID(c), c.Params("challengeId"))
		return reply(c, fiber.Map{"on_waitlist": on}, err)
	})
	app.Get("/challenges/:id/ticket-waitlist", auth, func(c *fiber.Ctx) error {
		items, err := tickets.Waitlist(c.Params("id"))
		return reply(c, items, err)
	})
}

package handlers

import (
	"doin-challenge/middleware"
	"doin-challenge/models"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

func SetupInvitationRoutes(app fiber.Router, invitations *services.InvitationService) {
	app.Get("/invitations/code/:code", func(c *fiber.Ctx) error {
		detail, err := invitations.GetByCode(c.Params("code"))
		return reply(c, detail, err)
	})
	// Use records a redemption without a participation; joining with a code goes through /participations.
	app.Post("/invitations/code/:code/use", func(c *fiber.Ctx) error {
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, err)
			}
		}
		in := services.UseInput{DisplayName: body.DisplayName}
		if uid := middleware.UserID(c); uid != "" {
			in.UserID = &uid
		}
		inv, err := invitations.Use(c.Params("code"), in)
		return reply(c, inv, err)
	})

	app.Post("/invitations", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var in services.InvitationInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		inv, err := invitations.Create(actor(c), in)
		return created(c, inv, err)
	})
	app.Get("/invitations/mine", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := invitations.ListMine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/invitations/mine/stats", middleware.RequireUser(), func(c *fiber.Ctx) error {
		stats, err := invitations.MyStats(middleware.UserID(c))
		return reply(c, stats, err)
	})
	app.Get("/challenges/:id/invitations", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := invitations.ListForChallenge(c.Params("id"))
		return reply(c, items, err)
	})
	app.Post("/invitations/:id/deactivate", middleware.RequireUser(), func(c *fiber.Ctx) error {
		return noContent(c, invitations.Deactivate(actor(c), c.Params("id")))
	})
	app.Get("/invitations/:id/stats", middleware.RequireUser(), func(c *fiber.Ctx) error {
		stats, err := invitations.Stats(c.Params("id"))
		return reply(c, stats, err)
	})
	app.Get("/invitations/:id/participants", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := invitations.InvitedParticipants(actor(c), c.Params("id"))
		return reply(c, items, err)
	})
}

func SetupCollaboratorRoutes(app fiber.Router, collaborators *services.CollaboratorService) {
	app.Get("/challenges/:id/collaborators", func(c *fiber.Ctx) error {
		items, err := collaborators.List(c.Params("id"))
		return reply(c, items, err)
	})
	app.Get("/challenges/:id/permissions", middleware.RequireUser(), func(c *fiber.Ctx) error {
		perms, err := collaborators.Permissions(c.Params("id"), middleware.UserID(c))
		return reply(c, perms, err)
	})
	app.Post("/challenges/:id/collaborators/invitations", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var body struct {
			Role models.CollaboratorRole `json:"role"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, err)
		}
		inv, err := collaborators.CreateInvitation(actor(c), c.Params("id"), body.Role)
		return created(c, inv, err)
	})
	app.Delete("/challenges/:id/collaborators/:userId", middleware.RequireUser(), func(c *fiber.Ctx) error {
		return noContent(c, collaborators.Remove(actor(c), c.Params("id"), c.Params("userId")))
	})

	app.Get("/collaborations/mine", middleware.RequireUser(), func(c *fiber.Ctx) error {
		items, err := collaborators.Mine(middleware.UserID(c))
		return reply(c, items, err)
	})
	app.Get("/collaborator-invitations/:code", func(c *fiber.Ctx) error {
		inv, err := collaborators.GetInvitation(c.Params("code"))
		return reply(c, inv, err)
	})
	app.Post("/collaborator-invitations/:code/accept", middleware.RequireUser(), func(c *fiber.Ctx) error {
		collab, err := collaborators.Accept(actor(c), c.Params("code"))
		return reply(c, collab, err)
	})
	app.Post("/collaborator-invitations/:code/decline", middleware.RequireUser(), func(c *fiber.Ctx) error {
		return noContent(c, collaborators.Decline(actor(c), c.Params("code")))
	})
}

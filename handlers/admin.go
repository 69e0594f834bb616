package handlers

import (
	"time"

	"doin-challenge/models"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
)

type reasonBody struct {
	Reason string `json:"reason"`
}

// parseReason accepts an empty body.
func parseReason(c *fiber.Ctx) (string, error) {
	var body reasonBody
	if len(c.Body()) == 0 {
		return "", nil
	}
	if err := c.BodyParser(&body); err != nil {
		return "", err
	}
	return body.Reason, nil
}

// parseTimeQuery reads an RFC3339 or YYYY-MM-DD query parameter.
func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}

func SetupAdminRoutes(app fiber.Router, svc *services.Services, admin fiber.Handler) {
	adminGroup := app.Group("/admin", admin)

	adminGroup.Get("/categories", func(c *fiber.Ctx) error {
		items, err := svc.Categories.ListAll()
		return reply(c, items, err)
	})

	// 🗑️ Soft-deleted participations
	adminGroup.Get("/participations/deleted", func(c *fiber.Ctx) error {
		page, err := svc.Admin.DeletedParticipations(services.DeletedQuery{
			ChallengeID: c.Query("challenge_id"),
			UserID:      c.Query("user_id"),
			Limit:       c.QueryInt("limit", 0),
			Offset:      c.QueryInt("offset", 0),
		})
		return reply(c, page, err)
	})
	adminGroup.Post("/participations/:id/restore", func(c *fiber.Ctx) error {
		reason, err := parseReason(c)
		if err != nil {
			return badRequest(c, err)
		}
		p, err := svc.Admin.RestoreParticipation(actor(c), c.Params("id"), reason)
		return reply(c, p, err)
	})
	adminGroup.Post("/participations/bulk-delete", func(c *fiber.Ctx) error {
		var in services.BulkInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Admin.BulkDelete(actor(c), in)
		return reply(c, res, err)
	})
	adminGroup.Post("/participations/bulk-restore", func(c *fiber.Ctx) error {
		var in services.BulkInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Admin.BulkRestore(actor(c), in)
		return reply(c, res, err)
	})

	// 👤 Users
	adminGroup.Get("/users", func(c *fiber.Ctx) error {
		page, err := svc.Admin.Users(services.UserQuery{
			Search: c.Query("search"),
			Role:   models.UserRole(c.Query("role")),
			Limit:  c.QueryInt("limit", 0),
			Offset: c.QueryInt("offset", 0),
		})
		return reply(c, page, err)
	})
	adminGroup.Get("/users/:id", func(c *fiber.Ctx) error {
		u, err := svc.Admin.User(c.Params("id"))
		return reply(c, u, err)
	})
	adminGroup.Put("/users/:id/role", func(c *fiber.Ctx) error {
		var body struct {
			Role   models.UserRole `json:"role"`
			Reason string          `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, err)
		}
		u, err := svc.Admin.UpdateRole(actor(c), c.Params("id"), body.Role, body.Reason)
		return reply(c, u, err)
	})

	// 📜 Audit trail
	adminGroup.Get("/audit-logs", func(c *fiber.Ctx) error {
		from, err := parseTimeQuery(c, "from")
		if err != nil {
			return respondError(c, err)
		}
		to, err := parseTimeQuery(c, "to")
		if err != nil {
			return respondError(c, err)
		}
		page, err := svc.Admin.AuditLogs(services.AuditQuery{
			EntityType: c.Query("entity_type"),
			TargetID:   c.Query("target_id"),
			ActorID:    c.Query("actor_id"),
			Action:     c.Query("action"),
			From:       from,
			To:         to,
			Limit:      c.QueryInt("limit", 0),
			Offset:     c.QueryInt("offset", 0),
		})
		return reply(c, page, err)
	})

	// 🧮 Data integrity
	adminGroup.Get("/integrity", func(c *fiber.Ctx) error {
		report, err := svc.Admin.Integrity()
		return reply(c, report, err)
	})
	adminGroup.Post("/integrity/recalculate", func(c *fiber.Ctx) error {
		var body struct {
			ChallengeID string `json:"challenge_id"`
			Reason      string `json:"reason"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, err)
			}
		}
		rows, err := svc.Admin.Recalculate(actor(c), body.ChallengeID, body.Reason)
		return reply(c, fiber.Map{"fixed": rows}, err)
	})

	adminGroup.Post("/badges/award", func(c *fiber.Ctx) error {
		var body struct {
			UserID      string  `json:"user_id"`
			BadgeID     string  `json:"badge_id"`
			ChallengeID *string `json:"challenge_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, err)
		}
		awarded, err := svc.Badges.Award(body.UserID, body.BadgeID, body.ChallengeID)
		return reply(c, fiber.Map{"awarded": awarded}, err)
	})
}

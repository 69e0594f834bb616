package handlers

import (
	"strings"

	"doin-challenge/config"
	"doin-challenge/middleware"
	"doin-challenge/services"
	"doin-challenge/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp builds the fiber app with every route mounted.
func NewApp(cfg *config.Config, svc *services.Services, manager *session.Manager) *fiber.App {
	bodyLimit := cfg.Server.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 10
	}
	app := fiber.New(fiber.Config{
		AppName:               "doin-challenge",
		BodyLimit:             bodyLimit * 1024 * 1024,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	origins := strings.Join(cfg.Server.AllowedOrigins, ",")
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: origins != "*", // fiber rejects credentials with a wildcard
		MaxAge:           86400,
	}))

	// probes bypass the gateway
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 🔐❗ everything below must come through the gateway
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	app.Use(middleware.UserContextMiddleware(manager, cfg.Session.CookieName))

	admin := middleware.RequireAdmin(svc.Users.Role)

	SetupAuthRoutes(app, svc.Users, manager, cfg.Session.CookieName)
	SetupProfileRoutes(app, svc.Users)
	SetupChallengeRoutes(app, svc)
	SetupCategoryRoutes(app, svc, admin)
	SetupTemplateRoutes(app, svc.Templates)
	SetupParticipationRoutes(app, svc.Participations)
	SetupInvitationRoutes(app, svc.Invitations)
	SetupCollaboratorRoutes(app, svc.Collaborators)
	SetupTicketRoutes(app, svc.Tickets)
	SetupNotificationRoutes(app, svc.Notifications, manager)
	SetupProgressionRoutes(app, svc)
	SetupAdminRoutes(app, svc, admin)

	return app
}

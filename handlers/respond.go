package handlers

import (
	"errors"

	"doin-challenge/logger"
	"doin-challenge/middleware"
	"doin-challenge/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrUnauthenticated, fiber.StatusUnauthorized},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrInvalidInput, fiber.StatusBadRequest},
	{services.ErrConflict, fiber.StatusConflict},
	{services.ErrInvitationExhausted, fiber.StatusConflict},
	{services.ErrInvitationInactive, fiber.StatusGone},
	{services.ErrInvitationExpired, fiber.StatusGone},
	{services.ErrUploadsDisabled, fiber.StatusServiceUnavailable},
}

// respondError writes {"error","cause"} for domain errors and a bare 500 for anything else.
func respondError(c *fiber.Ctx, err error) error {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(fiber.Map{
				"error": e.err.Error(),
				"cause": err.Error(),
			})
		}
	}
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
	}

	requestID := middleware.RequestID(c)
	logger.Error("[HTTP] internal error",
		zap.String("request_id", requestID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "internal error",
		"request_id": requestID,
	})
}

func badRequest(c *fiber.Ctx, cause error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
		"cause": cause.Error(),
	})
}

// ErrorHandler is the fiber app error handler; it routes handler errors through respondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}

// actor builds the service caller from the request.
func actor(c *fiber.Ctx) services.Actor {
	return services.Actor{
		UserID:    middleware.UserID(c),
		Role:      middleware.UserRole(c),
		RequestID: middleware.RequestID(c),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// reply sends v as JSON or the error.
func reply(c *fiber.Ctx, v interface{}, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(v)
}

func created(c *fiber.Ctx, v interface{}, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

func noContent(c *fiber.Ctx, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

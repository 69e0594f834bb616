package middleware

import (
	"time"

	"doin-challenge/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger assigns or propagates X-Request-ID and logs every request.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalRequestID, id)
		c.Set(RequestIDHeader, id)

		err := c.Next()
		if err != nil {
			// let the app error handler write the response before logging its status
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		}
		if uid := UserID(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		status := c.Response().StatusCode()
		switch {
		case status >= 500:
			logger.Error("[HTTP] request failed", fields...)
		case status >= 400:
			logger.Warn("[HTTP] request rejected", fields...)
		default:
			logger.Info("[HTTP] request", fields...)
		}
		return nil
	}
}

package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const streamPollInterval = 2 * time.Second

// StreamNotificationsSSE pushes the user's new notifications as server-sent events.
func (s *NotificationService) StreamNotificationsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrUnauthenticated.Error()})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		cursor := s.streamCursor(userID)

		unread, _ := s.UnreadCount(userID)
		fmt.Fprintf(w, "event: unread\ndata: %d\n\n", unread)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				var fresh []models.Notification
				err := s.DB.Where("user_id = ? AND created_at > ?", userID, cursor).
					Order("created_at ASC").
					Find(&fresh).Error
				if err != nil {
					logger.Warn("[NOTIFY] stream query failed", zap.String("user_id", userID), zap.Error(err))
					continue
				}
				if len(fresh) == 0 {
					// keepalive comment; a failed flush means the client is gone
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}
				cursor = fresh[len(fresh)-1].CreatedAt

				for _, n := range fresh {
					payload, err := json.Marshal(n)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, payload)
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-done:
				return
			}
		}
	})
	return nil
}

func (s *NotificationService) streamCursor(userID string) time.Time {
	var latest models.Notification
	err := s.DB.Select("created_at").Where("user_id = ?", userID).Order("created_at DESC").First(&latest).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("[NOTIFY] stream init failed", zap.String("user_id", userID), zap.Error(err))
		}
		return time.Now().UTC()
	}
	return latest.CreatedAt
}

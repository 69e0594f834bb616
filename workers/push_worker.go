package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"doin-challenge/logger"
	"doin-challenge/services"
	"doin-challenge/utils"

	"go.uber.org/zap"
)

// Expo accepts at most 100 messages per request.
const pushBatchSize = 100

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// PushWorker delivers unsent notifications to the Expo push endpoint.
type PushWorker struct {
	notifications *services.NotificationService
	endpoint      string
	interval      time.Duration
	httpClient    *http.Client
}

func NewPushWorker(notifications *services.NotificationService, endpoint string, interval time.Duration) *PushWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PushWorker{
		notifications: notifications,
		endpoint:      endpoint,
		interval:      interval,
		httpClient:    utils.HTTPClient,
	}
}

func (w *PushWorker) WithHTTPClient(c *http.Client) *PushWorker {
	w.httpClient = c
	return w
}

// Run polls for pending pushes until ctx is done.
func (w *PushWorker) Run(ctx context.Context) {
	logger.Info("📣 [PUSH] push worker started", zap.String("endpoint", w.endpoint), zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("⏹️ [PUSH] push worker stopped")
			return
		case <-ticker.C:
			if _, err := w.DeliverOnce(ctx); err != nil {
				logger.Error("❌ [PUSH] delivery failed", zap.Error(err))
			}
		}
	}
}

// DeliverOnce sends one batch and marks every notification Expo issued a ticket for.
// Transport failures leave the batch unsent for the next tick.
func (w *PushWorker) DeliverOnce(ctx context.Context) (int, error) {
	pending, err := w.notifications.PendingPush(pushBatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	msgs := make([]expoMessage, len(pending))
	for i, p := range pending {
		msgs[i] = expoMessage{To: p.Token, Title: p.Title, Body: p.Body, Sound: "default"}
		if p.ChallengeID != nil {
			msgs[i].Data = map[string]string{"challenge_id": *p.ChallengeID}
		}
	}

	tickets, err := w.send(ctx, msgs)
	if err != nil {
		return 0, err
	}

	sent := make([]string, 0, len(pending))
	for i, t := range tickets {
		if i >= len(pending) {
			break
		}
		if t.Status != "ok" {
			logger.Warn("[PUSH] ⚠️ message rejected",
				zap.String("notification_id", pending[i].NotificationID),
				zap.String("message", t.Message),
			)
		}
		sent = append(sent, pending[i].NotificationID)
	}
	if err := w.notifications.MarkSent(sent, time.Now()); err != nil {
		return 0, err
	}
	logger.Info("[PUSH] ✅ batch delivered", zap.Int("pending", len(pending)), zap.Int("marked", len(sent)))
	return len(sent), nil
}

func (w *PushWorker) send(ctx context.Context, msgs []expoMessage) ([]expoTicket, error) {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	var out expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return out.Data, nil
}

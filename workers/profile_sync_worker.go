// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"
	"doin-challenge/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches one record of the profile service response.
type RemoteProfile struct {
	OpenID         string    `json:"open_id"`
	TwitterID      string    `json:"twitter_id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	ProfileImage   string    `json:"profile_image"`
	FollowersCount int       `json:"followers_count"`
	Description    string    `json:"description"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors display fields from the profile service into users.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	endpoint     string
	serviceToken string
	httpClient   *http.Client

	since time.Time
}

func NewProfileSyncWorker(db *gorm.DB, endpoint, serviceToken string, interval time.Duration) *ProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		db:           db,
		interval:     interval,
		endpoint:     endpoint,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

// WithHTTPClient swaps the outbound client.
func (w *ProfileSyncWorker) WithHTTPClient(c *http.Client) *ProfileSyncWorker {
	w.httpClient = c
	return w
}

// Run syncs once immediately, then on every tick until ctx is done.
func (w *ProfileSyncWorker) Run(ctx context.Context) {
	logger.Info("🔁 [SYNC] profile sync worker started", zap.String("endpoint", w.endpoint), zap.Duration("interval", w.interval))

	if _, err := w.SyncOnce(ctx); err != nil {
		logger.Warn("⚠️ [SYNC] initial sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				logger.Error("❌ [SYNC] sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("⏹️ [SYNC] profile sync worker stopped")
			return
		}
	}
}

// SyncOnce fetches changes since the last seen update and upserts them on open_id.
// It returns the number of upserted users.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	profiles, err := w.fetch(ctx, w.since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		logger.Debug("[SYNC] ✅ no profile changes", zap.Time("since", w.since))
		return 0, nil
	}

	var upserted, failed int
	latest := w.since
	for _, remote := range profiles {
		if remote.OpenID == "" {
			failed++
			continue
		}
		local := models.User{
			OpenID:         remote.OpenID,
			TwitterID:      remote.TwitterID,
			Name:           remote.Name,
			Username:       remote.Username,
			ProfileImage:   remote.ProfileImage,
			FollowersCount: remote.FollowersCount,
			Description:    remote.Description,
			Role:           models.RoleUser,
			Gender:         models.GenderUnspecified,
		}
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "open_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"twitter_id", "name", "username", "profile_image", "followers_count", "description", "updated_at",
			}),
		}).Create(&local).Error; err != nil {
			failed++
			logger.Warn("[SYNC] ⚠️ failed to upsert user", zap.String("open_id", remote.OpenID), zap.Error(err))
			continue
		}
		upserted++
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
	}

	// retry the same window next tick when nothing landed
	if upserted > 0 {
		w.since = latest
	}
	logger.Info("[SYNC] ✅ profiles synced",
		zap.Int("received", len(profiles)),
		zap.Int("upserted", upserted),
		zap.Int("failed", failed),
		zap.Time("since", w.since),
	)
	return upserted, nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid profile service URL %q: %w", w.endpoint, err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var out profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode profile service response: %w", err)
	}
	return out.Users, nil
}

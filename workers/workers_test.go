package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"doin-challenge/cache"
	"doin-challenge/database"
	"doin-challenge/models"
	"doin-challenge/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func noKeepAlive() *http.Client {
	return &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
}

func TestProfileSyncUpsertsOnOpenID(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.Create(&models.User{OpenID: "twitter:1", Name: "old name", Role: models.RoleAdmin}).Error)

	updated := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var sinceSeen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sync-token", r.Header.Get("X-Service-Token"))
		sinceSeen.Store(r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode(profileChangesResponse{Users: []RemoteProfile{
			{OpenID: "twitter:1", Name: "new name", Username: "mio", FollowersCount: 120, UpdatedAt: updated},
			{OpenID: "twitter:2", Name: "newcomer", UpdatedAt: updated.Add(-time.Hour)},
			{Name: "no open id"},
		}})
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(db, srv.URL, "sync-token", time.Minute).WithHTTPClient(noKeepAlive())
	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, time.Time{}.Format(time.RFC3339), sinceSeen.Load())

	var u models.User
	require.NoError(t, db.Where("open_id = ?", "twitter:1").First(&u).Error)
	assert.Equal(t, "new name", u.Name)
	assert.Equal(t, 120, u.FollowersCount)
	assert.Equal(t, models.RoleAdmin, u.Role, "sync never touches the role")

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	_, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updated.Format(time.RFC3339), sinceSeen.Load())
}

func TestProfileSyncReportsUpstreamErrors(t *testing.T) {
	db := openDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(db, srv.URL, "", time.Minute).WithHTTPClient(noKeepAlive())
	_, err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func pushFixture(t *testing.T) *services.Services {
	t.Helper()
	db := openDB(t)
	svc := services.New(db, cache.NewMemoryStore(), services.Options{})

	host, err := svc.Users.Login(services.LoginInput{OpenID: "twitter:10", Name: "host"})
	require.NoError(t, err)
	title, date, goal := "渋谷ワンマン", "2026-12-24", 10
	ch, err := svc.Challenges.Create(services.Actor{UserID: host.ID, Role: host.Role}, services.ChallengeInput{
		Title: &title, EventDate: &date, GoalValue: &goal,
	})
	require.NoError(t, err)

	token := "ExponentPushToken[abc]"
	_, err = svc.Notifications.UpdateSettings(host.ID, ch.ID, services.SettingsInput{ExpoPushToken: &token})
	require.NoError(t, err)

	_, err = svc.Notifications.Notify(host.ID, &ch.ID, models.NotifyMilestone50, "50%達成", "半分まで来ました")
	require.NoError(t, err)
	_, err = svc.Notifications.Notify(host.ID, &ch.ID, models.NotifyGoalReached, "目標達成", "おめでとう")
	require.NoError(t, err)
	return svc
}

func TestPushDeliversAndMarksSent(t *testing.T) {
	svc := pushFixture(t)

	var received []expoMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		tickets := make([]expoTicket, len(received))
		for i := range tickets {
			tickets[i] = expoTicket{Status: "ok", ID: "t"}
		}
		tickets[len(tickets)-1] = expoTicket{Status: "error", Message: "DeviceNotRegistered"}
		_ = json.NewEncoder(w).Encode(expoResponse{Data: tickets})
	}))
	defer srv.Close()

	w := NewPushWorker(svc.Notifications, srv.URL, time.Minute).WithHTTPClient(noKeepAlive())
	n, err := w.DeliverOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, received, 2)
	assert.Equal(t, "ExponentPushToken[abc]", received[0].To)
	assert.NotEmpty(t, received[0].Data["challenge_id"])

	pending, err := svc.Notifications.PendingPush(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPushLeavesBatchOnTransportFailure(t *testing.T) {
	svc := pushFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := NewPushWorker(svc.Notifications, srv.URL, time.Minute).WithHTTPClient(noKeepAlive())
	_, err := w.DeliverOnce(context.Background())
	require.Error(t, err)

	pending, err := svc.Notifications.PendingPush(10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestWorkersStopOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreCurrent(),
	)

	db := openDB(t)
	svc := services.New(db, cache.NewMemoryStore(), services.Options{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(profileChangesResponse{})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	profiles := NewProfileSyncWorker(db, srv.URL, "", 10*time.Millisecond).WithHTTPClient(noKeepAlive())
	push := NewPushWorker(svc.Notifications, srv.URL, 10*time.Millisecond).WithHTTPClient(noKeepAlive())

	done := make(chan struct{}, 2)
	go func() { profiles.Run(ctx); done <- struct{}{} }()
	go func() { push.Run(ctx); done <- struct{}{} }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

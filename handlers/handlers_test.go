package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"doin-challenge/cache"
	"doin-challenge/config"
	"doin-challenge/database"
	"doin-challenge/services"
	"doin-challenge/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testGatewayToken = "gateway-secret"

type testServer struct {
	app     *fiber.App
	svc     *services.Services
	db      *gorm.DB
	manager *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	_, err = services.Seed(db)
	require.NoError(t, err)

	cfg := &config.Config{
		GatewayToken: testGatewayToken,
		Session:      config.SessionConfig{Secret: "test-secret", TTL: time.Hour, CookieName: "doin_session"},
	}
	svc := services.New(db, cache.NewMemoryStore(), services.Options{})
	manager := session.NewManager(cfg.Session.Secret, cfg.Session.TTL)
	return &testServer{app: NewApp(cfg, svc, manager), svc: svc, db: db, manager: manager}
}

// do sends a gateway-authorized request; token may be empty for anonymous calls.
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Service-Token", testGatewayToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (s *testServer) login(t *testing.T, openID, name string) (string, string) {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/auth/login", "", services.LoginInput{
		OpenID:      openID,
		Name:        name,
		Username:    name,
		LoginMethod: "twitter",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	user := body["user"].(map[string]interface{})
	return token, user["id"].(string)
}

func (s *testServer) createChallenge(t *testing.T, token string) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/challenges", token, map[string]interface{}{
		"title":      "下北沢ワンマン動員チャレンジ",
		"event_date": "2026-12-24",
		"venue":      "下北沢SHELTER",
		"goal_value": 100,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func TestGatewayTokenRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/challenges", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/challenges", nil)
	req.Header.Set("X-Service-Token", "wrong")
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/challenges", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginSessionFlow(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"name": "no open id"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token, userID := s.login(t, "twitter:1001", "mio")

	resp, body := s.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, userID, user["id"])
	assert.Equal(t, false, body["needs_refresh"])

	// a garbage token is treated as anonymous, not rejected
	resp, _ = s.do(t, http.MethodGet, "/challenges", "not-a-jwt", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestChallengeRoutesMapErrors(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "twitter:2001", "host")
	otherToken, _ := s.login(t, "twitter:2002", "other")

	resp, _ := s.do(t, http.MethodPost, "/challenges", "", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/challenges", token, map[string]interface{}{"venue": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.ErrInvalidInput.Error(), body["error"])

	id := s.createChallenge(t, token)

	resp, body = s.do(t, http.MethodGet, "/challenges/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["id"])

	resp, _ = s.do(t, http.MethodGet, "/challenges/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/challenges/"+id, otherToken, map[string]interface{}{"venue": "elsewhere"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/challenges/mine", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/participations", "", map[string]interface{}{
		"challenge_id": id,
		"display_name": "通りすがり",
		"contribution": 1,
		"prefecture":   "東京都",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Nil(t, body["user_id"])

	resp, body = s.do(t, http.MethodGet, "/challenges/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["current_value"])
}

func TestAdminRoutesCheckStoredRole(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "twitter:3001", "soon-admin")

	resp, _ := s.do(t, http.MethodGet, "/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// promotion takes effect without a new token
	require.NoError(t, services.PromoteAdmin(s.db, "twitter:3001"))
	resp, body := s.do(t, http.MethodGet, "/admin/users", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total_count"])

	resp, _ = s.do(t, http.MethodGet, "/admin/audit-logs?from=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/admin/integrity", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvitationStatusCodes(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, "twitter:4001", "inviter")
	challengeID := s.createChallenge(t, token)

	resp, body := s.do(t, http.MethodPost, "/invitations", token, map[string]interface{}{
		"challenge_id": challengeID,
		"max_uses":     1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)
	invitationID := body["id"].(string)

	resp, _ = s.do(t, http.MethodPost, "/invitations/code/"+code+"/use", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = s.do(t, http.MethodPost, "/invitations/code/"+code+"/use", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, services.ErrInvitationExhausted.Error(), body["error"])

	resp, _ = s.do(t, http.MethodPost, "/invitations/"+invitationID+"/deactivate", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/invitations/code/"+code+"/use", "", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/invitations/code/NOPE0000/use", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotificationRoutesRequireUser(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/notifications/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/notifications/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _ := s.login(t, "twitter:5001", "reader")
	resp, body := s.do(t, http.MethodGet, "/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])

	// public routes registered after the secured ones stay public
	resp, _ = s.do(t, http.MethodGet, "/rankings/contributors?period=weekly", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/rankings/contributors?period=yearly", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

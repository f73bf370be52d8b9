package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/decipherworld/classroom-server/internal/repository"
	"github.com/decipherworld/classroom-server/internal/service"
	ws "github.com/decipherworld/classroom-server/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*Router, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := repository.TestDB(t)
	repository.SeedTestData(t, db)

	cfg := service.DefaultConfig()
	hub := ws.NewHub(time.Hour, time.Hour, zap.NewNop())
	services := service.NewServices(db, cfg, hub, zap.NewNop())

	router := NewRouter(db, cfg, nil, services, hub, zap.NewNop())

	t.Cleanup(func() {
		hub.Stop()
		repository.CleanupTestDB(db)
	})
	return router, db
}

func doJSON(t *testing.T, router *Router, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.Engine().ServeHTTP(w, req)
	return w
}

func registerFacilitator(t *testing.T, router *Router, email string) service.AuthResponse {
	t.Helper()

	w := doJSON(t, router, "POST", "/api/v1/auth/register", map[string]string{
		"email":    email,
		"name":     "Ms Rivera",
		"password": "correct-horse",
		"school":   "Lincoln Middle",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp service.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestAuthFlow(t *testing.T) {
	router, _ := setupRouter(t)

	resp := registerFacilitator(t, router, "rivera@example.com")
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)

	// Login with the same credentials.
	w := doJSON(t, router, "POST", "/api/v1/auth/login", map[string]string{
		"email":    "rivera@example.com",
		"password": "correct-horse",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login service.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	// Profile requires the access token.
	w = doJSON(t, router, "GET", "/api/v1/auth/profile", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rivera@example.com")

	w = doJSON(t, router, "GET", "/api/v1/auth/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A refresh token must not pass as an access token.
	w = doJSON(t, router, "GET", "/api/v1/auth/profile", nil, login.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// But it mints a fresh pair.
	w = doJSON(t, router, "POST", "/api/v1/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router, _ := setupRouter(t)
	registerFacilitator(t, router, "rivera@example.com")

	w := doJSON(t, router, "POST", "/api/v1/auth/login", map[string]string{
		"email":    "rivera@example.com",
		"password": "wrong-horse",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSessionRequiresAuth(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/sessions", map[string]string{
		"game_slug": "design-sprint",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	router, _ := setupRouter(t)
	auth := registerFacilitator(t, router, "rivera@example.com")

	w := doJSON(t, router, "POST", "/api/v1/sessions", map[string]string{
		"game_slug": "design-sprint",
	}, auth.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		JoinCode string `json:"join_code"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.JoinCode, 6)
	assert.Equal(t, "waiting", created.Status)

	base := fmt.Sprintf("/api/v1/sessions/%s", created.JoinCode)

	w = doJSON(t, router, "POST", base+"/start", nil, auth.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, "GET", base, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot service.SessionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, "in_progress", snapshot.Status)
	assert.Equal(t, "Design Sprint", snapshot.GameName)

	w = doJSON(t, router, "POST", base+"/abandon", nil, auth.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetSessionUnknownCode(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "GET", "/api/v1/sessions/NOPE99", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeamRoster(t *testing.T) {
	router, _ := setupRouter(t)

	// The seeded session already holds two teams.
	w := doJSON(t, router, "GET", "/api/v1/sessions/ABC123/teams", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var teams []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &teams))
	require.Len(t, teams, 2)

	// Team creation is open to unauthenticated students.
	w = doJSON(t, router, "POST", "/api/v1/sessions/ABC123/teams", map[string]interface{}{
		"name":  "Green Geckos",
		"emoji": "🦎",
		"color": "#22C55E",
		"members": []map[string]string{
			{"name": "Dev", "student_session_id": "stu-010"},
		},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Duplicate names inside one session collide.
	w = doJSON(t, router, "POST", "/api/v1/sessions/ABC123/teams", map[string]interface{}{
		"name": "Green Geckos",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWebSocketUpgradeUnknownCode(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "GET", "/ws/NOPE99", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationErrorShape(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/auth/register", map[string]string{
		"email":    "not-an-email",
		"name":     "X",
		"password": "short",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1001, resp.Code)
	assert.NotEmpty(t, resp.Message)
}

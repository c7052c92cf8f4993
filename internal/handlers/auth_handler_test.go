package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/hasher"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type mailbox struct {
	mu    sync.Mutex
	links map[string]string
	codes map[string]string
}

func newMailbox() *mailbox {
	return &mailbox{links: map[string]string{}, codes: map[string]string{}}
}

func (m *mailbox) SendVerification(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[email] = link
	return nil
}

func (m *mailbox) SendTwoFactorCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *mailbox) token(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.links[email])
	require.NoError(t, err)
	return u.Query().Get("token")
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type server struct {
	app  *fiber.App
	db   *gorm.DB
	mail *mailbox
	auth *services.AuthService
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		DBDriver:        "sqlite",
		SQLitePath:      ":memory:",
		JWTSecret:       "test-secret",
		JWTAccessExpiry: time.Hour,
		AppBaseURL:      "http://localhost:3000/api",
		TwoFactorTTL:    5 * time.Minute,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.MigrateShared(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h, err := hasher.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	mail := newMailbox()
	auth := services.NewAuthService(store.NewGormUserStore(db), h, mail, cfg)

	app := fiber.New()
	routes.Setup(app, cfg, db,
		handlers.NewAuthHandler(auth),
		handlers.NewHealthHandler(db),
		handlers.NewAdminHandler(db),
		[]apps.Plugin{},
		routes.Options{DisableLimiter: true},
	)
	return &server{app: app, db: db, mail: mail, auth: auth}
}

func (s *server) do(t *testing.T, method, path string, body any, bearer string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (s *server) signIn(t *testing.T, email, password string) dto.AuthResponse {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, status)

	status, raw := s.do(t, http.MethodPost, "/api/auth/verify-2fa", fiber.Map{"email": email, "code": s.mail.code(email)}, "")
	require.Equal(t, http.StatusOK, status, string(raw))

	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func errorMessage(t *testing.T, raw []byte) string {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.True(t, e.Error)
	return e.Message
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	s := newServer(t)
	creds := fiber.Map{"email": "a@x.com", "password": "secret1"}

	status, raw := s.do(t, http.MethodPost, "/api/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, status, string(raw))

	status, raw = s.do(t, http.MethodPost, "/api/auth/register", creds, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists", errorMessage(t, raw))

	// unverified accounts get the same answer as a wrong password
	status, raw = s.do(t, http.MethodPost, "/api/auth/login", creds, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", errorMessage(t, raw))

	token := s.mail.token(t, "a@x.com")
	require.Len(t, token, 64)

	status, _ = s.do(t, http.MethodGet, "/api/auth/verify-email?token="+token, nil, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/auth/verify-email?token="+token, nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, raw = s.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": "a@x.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", errorMessage(t, raw))

	status, _ = s.do(t, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, status)
	code := s.mail.code("a@x.com")
	require.Len(t, code, 6)

	status, _ = s.do(t, http.MethodPost, "/api/auth/verify-2fa", fiber.Map{"email": "a@x.com", "code": "000000"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw = s.do(t, http.MethodPost, "/api/auth/verify-2fa", fiber.Map{"email": "a@x.com", "code": code}, "")
	require.Equal(t, http.StatusOK, status)

	var auth dto.AuthResponse
	require.NoError(t, json.Unmarshal(raw, &auth))
	assert.Equal(t, "a@x.com", auth.User.Email)
	assert.Equal(t, models.RoleUser, auth.User.Role)
	assert.True(t, auth.User.IsEmailVerified)
	assert.NotEmpty(t, auth.AccessToken)
	assert.NotContains(t, string(raw), "password")

	// the code is single use
	status, _ = s.do(t, http.MethodPost, "/api/auth/verify-2fa", fiber.Map{"email": "a@x.com", "code": code}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw = s.do(t, http.MethodGet, "/api/auth/me", nil, auth.AccessToken)
	require.Equal(t, http.StatusOK, status)
	var me dto.UserResponse
	require.NoError(t, json.Unmarshal(raw, &me))
	assert.Equal(t, auth.User, me)
}

func TestRegister_ValidationErrors(t *testing.T) {
	s := newServer(t)

	status, raw := s.do(t, http.MethodPost, "/api/auth/register", fiber.Map{"email": "nope", "password": "1"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, raw), "email must be a valid email address")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyEmail_MissingToken(t *testing.T) {
	s := newServer(t)
	status, _ := s.do(t, http.MethodGet, "/api/auth/verify-email", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/api/auth/verify-email?token=unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLogin_UnknownEmail(t *testing.T) {
	s := newServer(t)
	status, raw := s.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"email": "ghost@x.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", errorMessage(t, raw))
}

func TestMe_RequiresValidToken(t *testing.T) {
	s := newServer(t)

	status, _ := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	status, raw := s.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, status)

	var h dto.HealthResponse
	require.NoError(t, json.Unmarshal(raw, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ok", h.DB)
}

func TestAdminLogs_AdminOnly(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	created, err := s.auth.SeedAdmin(ctx, "root@x.com", "rootpass")
	require.NoError(t, err)
	require.True(t, created)

	_, err = s.auth.Register(ctx, "u@x.com", "secret1")
	require.NoError(t, err)
	_, err = s.auth.VerifyEmail(ctx, s.mail.token(t, "u@x.com"))
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, action := range []string{"notify.verification", "notify.two_factor"} {
		require.NoError(t, s.db.Create(&models.SystemLog{
			ID:        uuid.New(),
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Level:     "ERROR",
			Message:   "notification delivery failed",
			Action:    action,
		}).Error)
	}

	user := s.signIn(t, "u@x.com", "secret1")
	status, raw := s.do(t, http.MethodGet, "/api/admin/logs", nil, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", errorMessage(t, raw))

	admin := s.signIn(t, "root@x.com", "rootpass")
	assert.Equal(t, models.RoleAdmin, admin.User.Role)

	status, raw = s.do(t, http.MethodGet, "/api/admin/logs", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, status)
	var list dto.LogListResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "notify.two_factor", list.Logs[0].Action)

	status, raw = s.do(t, http.MethodGet, "/api/admin/logs?action=notify.verification&limit=5", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Equal(t, 1, list.Count)

	status, _ = s.do(t, http.MethodGet, "/api/admin/logs?limit=999", nil, admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRegister_MultibytePasswordIsBadRequest(t *testing.T) {
	s := newServer(t)

	status, raw := s.do(t, http.MethodPost, "/api/auth/register",
		fiber.Map{"email": "a@x.com", "password": strings.Repeat("é", 40)}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, raw), "password must be at most 72 bytes")

	var n int64
	require.NoError(t, s.db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

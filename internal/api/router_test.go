package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/messaging-system/internal/api/handler"
	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/service"
	"github.com/99minutos/messaging-system/internal/infrastructure/security"
	"github.com/99minutos/messaging-system/internal/pkg/config"
)

// memoryUsers is a minimal UserRepository with the unique-name rule.
type memoryUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]domain.User
}

func (r *memoryUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Name == u.Name {
			return nil, domain.ErrDuplicate
		}
	}
	r.seq++
	created := *u
	created.ID = fmt.Sprintf("%024x", r.seq)
	r.users[created.ID] = created
	return &created, nil
}

func (r *memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) FindByName(_ context.Context, name string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == name {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryUsers) Update(_ context.Context, id string, update domain.UserUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	r.users[id] = u
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:         "development",
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit:   config.RateLimitConfig{Requests: 100, Window: time.Minute},
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	access, err := security.NewTokenIssuer(domain.TokenAccess, "access-secret", 15*time.Minute)
	require.NoError(t, err)
	refresh, err := security.NewTokenIssuer(domain.TokenRefresh, "refresh-secret", time.Hour)
	require.NoError(t, err)

	users := &memoryUsers{users: make(map[string]domain.User)}
	deps := Deps{
		Auth: service.NewAuthService(users, security.NewArgon2idHasher(), access, refresh, zerolog.Nop()),
	}
	return NewEcho(testConfig(), deps, zerolog.Nop())
}

type response struct {
	Success bool                `json:"success"`
	Data    map[string]any      `json:"data"`
	Errors  []handler.ErrorItem `json:"errors"`
}

func do(t *testing.T, srv http.Handler, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestRouter_AliceScenario(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := do(t, srv, http.MethodPost, "/auth/register", `{"name":"alice","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = do(t, srv, http.MethodPost, "/auth/register", `{"name":"alice","password":"other"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "duplicate", resp.Errors[0].Code)
	assert.Equal(t, []string{}, resp.Errors[0].Path)

	rec, resp = do(t, srv, http.MethodPost, "/auth/login", `{"name":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid", resp.Errors[0].Code)
	assert.Equal(t, "Invalid username or password", resp.Errors[0].Message)

	rec, resp = do(t, srv, http.MethodPost, "/auth/login", `{"name":"alice","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	aliceID, _ := resp.Data["id"].(string)
	require.NotEmpty(t, aliceID)
	var aliceAccess *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access" {
			aliceAccess = c
		}
	}
	require.NotNil(t, aliceAccess)
	assert.False(t, aliceAccess.Secure, "development cookies are not secure")

	do(t, srv, http.MethodPost, "/auth/register", `{"name":"bob","password":"hunter2"}`)
	_, resp = do(t, srv, http.MethodGet, "/user?name=bob", "")
	bobID, _ := resp.Data["id"].(string)
	require.NotEmpty(t, bobID)

	rec, resp = do(t, srv, http.MethodPost, "/user", fmt.Sprintf(`{"id":%q,"name":"mallory"}`, bobID), aliceAccess)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", resp.Errors[0].Code)

	rec, resp = do(t, srv, http.MethodPost, "/user", fmt.Sprintf(`{"id":%q,"access":"garbage"}`, aliceID))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", resp.Errors[0].Code)

	rec, _ = do(t, srv, http.MethodPost, "/user", fmt.Sprintf(`{"id":%q,"password":"newpass"}`, aliceID), aliceAccess)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, srv, http.MethodPost, "/auth/login", `{"name":"alice","password":"newpass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RenewWithRefreshCookie(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/auth/register", `{"name":"alice","password":"secret123"}`)
	rec, _ := do(t, srv, http.MethodPost, "/auth/login", `{"name":"alice","password":"secret123"}`)

	var refresh *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)

	rec, resp := do(t, srv, http.MethodPost, "/auth/renew/access", "", refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.Data["access"])

	rec, resp = do(t, srv, http.MethodPost, "/auth/renew/access", `{"refresh":"garbage"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", resp.Errors[0].Message)
}

func TestRouter_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := do(t, srv, http.MethodPost, "/auth/register", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, resp.Errors, 2)
	for _, item := range resp.Errors {
		assert.Equal(t, "validation", item.Code)
		assert.Len(t, item.Path, 1)
	}

	rec, resp = do(t, srv, http.MethodGet, "/user", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing", resp.Errors[0].Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Errors[0].Code)
}

func newLimitedServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	access, err := security.NewTokenIssuer(domain.TokenAccess, "a", time.Minute)
	require.NoError(t, err)
	refresh, err := security.NewTokenIssuer(domain.TokenRefresh, "r", time.Minute)
	require.NoError(t, err)
	users := &memoryUsers{users: make(map[string]domain.User)}
	return NewEcho(cfg, Deps{
		Auth: service.NewAuthService(users, security.NewArgon2idHasher(), access, refresh, zerolog.Nop()),
	}, zerolog.Nop())
}

// loginFrom posts a failing login with the given X-Forwarded-For header.
func loginFrom(srv http.Handler, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"name":"ghost","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	if forwardedFor != "" {
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		req.Header.Set(echo.HeaderXRealIP, forwardedFor)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RateLimitsLogin(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Requests = 2
	srv := newLimitedServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec, _ := do(t, srv, http.MethodPost, "/auth/login", `{"name":"ghost","password":"x"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, resp := do(t, srv, http.MethodPost, "/auth/login", `{"name":"ghost","password":"x"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", resp.Errors[0].Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRouter_RateLimitIgnoresForwardedForFromClients(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Requests = 2
	srv := newLimitedServer(t, cfg)

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		codes = append(codes, loginFrom(srv, fmt.Sprintf("203.0.113.%d", i+1)).Code)
	}
	assert.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestRouter_RateLimitTrustsConfiguredProxy(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Requests = 2
	// httptest requests come from 192.0.2.1.
	cfg.TrustedProxies = []string{"192.0.2.0/24"}
	srv := newLimitedServer(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusUnauthorized, loginFrom(srv, "203.0.113.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(srv, "203.0.113.1").Code)
	assert.Equal(t, http.StatusUnauthorized, loginFrom(srv, "203.0.113.2").Code, "each forwarded client has its own bucket")
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

type stubAuthService struct {
	registerFn     func(ctx context.Context, name, password string) error
	loginFn        func(ctx context.Context, name, password string) (*domain.Session, error)
	renewAccessFn  func(ctx context.Context, refresh string) (*ports.AccessResult, error)
	renewRefreshFn func(ctx context.Context, refresh string) (*domain.Session, error)
	updateUserFn   func(ctx context.Context, input ports.UpdateUserInput) error
	findUserFn     func(ctx context.Context, id, name string) (*domain.Profile, error)
}

func (s *stubAuthService) Register(ctx context.Context, name, password string) error {
	return s.registerFn(ctx, name, password)
}

func (s *stubAuthService) Login(ctx context.Context, name, password string) (*domain.Session, error) {
	return s.loginFn(ctx, name, password)
}

func (s *stubAuthService) RenewAccess(ctx context.Context, refresh string) (*ports.AccessResult, error) {
	return s.renewAccessFn(ctx, refresh)
}

func (s *stubAuthService) RenewRefresh(ctx context.Context, refresh string) (*domain.Session, error) {
	return s.renewRefreshFn(ctx, refresh)
}

func (s *stubAuthService) UpdateUser(ctx context.Context, input ports.UpdateUserInput) error {
	return s.updateUserFn(ctx, input)
}

func (s *stubAuthService) FindUser(ctx context.Context, id, name string) (*domain.Profile, error) {
	return s.findUserFn(ctx, id, name)
}

// newTestEcho returns an echo instance with the validator installed, as the
// router does.
func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (Envelope, map[string]any) {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	data, _ := env.Data.(map[string]any)
	return env, data
}

func expectDomainCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected *domain.Error %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected code %s, got %s", code, de.Code)
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var testSession = &domain.Session{
	ID:               "65f1c0ffee0000000000aaaa",
	Name:             "alice",
	Access:           "access-token",
	Refresh:          "refresh-token",
	AccessExpiresAt:  time.Date(2030, 1, 1, 0, 15, 0, 0, time.UTC),
	RefreshExpiresAt: time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC),
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, name, password string) error {
			if name != "alice" || password != "secret123" {
				t.Fatalf("unexpected args: %s %s", name, password)
			}
			return nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", `{"name":"alice","password":"secret123"}`), rec)

	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env, _ := decodeEnvelope(t, rec)
	if !env.Success || env.Data != nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, name, password string) error {
			return domain.ErrUserExists
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", `{"name":"bob","password":"x"}`), httptest.NewRecorder())

	expectDomainCode(t, handler.Register(c), domain.CodeDuplicate)
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, name, password string) error {
			t.Fatalf("should not be called")
			return nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", "not-json"), httptest.NewRecorder())
	expectDomainCode(t, handler.Register(c), domain.CodeValidation)

	c = e.NewContext(jsonRequest(http.MethodPost, "/auth/register", `{"name":"bob"}`), httptest.NewRecorder())
	items, ok := ValidationItems(handler.Register(c))
	if !ok || len(items) != 1 || items[0].Path[0] != "password" || items[0].Code != "validation" {
		t.Fatalf("expected one validation item for password, got %+v", items)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, name, password string) (*domain.Session, error) {
			if name != "alice" || password != "secret123" {
				t.Fatalf("unexpected args: %s %s", name, password)
			}
			return testSession, nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{Secure: true})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"name":"alice","password":"secret123"}`), rec)

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	_, data := decodeEnvelope(t, rec)
	if data["id"] != testSession.ID || data["name"] != "alice" || data["access"] != "access-token" || data["refresh"] != "refresh-token" {
		t.Fatalf("unexpected session payload: %+v", data)
	}

	access := findCookie(rec, "access")
	if access == nil || access.Value != "access-token" || !access.HttpOnly || !access.Secure || access.Path != "/" {
		t.Fatalf("unexpected access cookie: %+v", access)
	}
	if access.SameSite != http.SameSiteLaxMode || !access.Expires.Equal(testSession.AccessExpiresAt) {
		t.Fatalf("unexpected access cookie attributes: %+v", access)
	}
	refresh := findCookie(rec, "refresh")
	if refresh == nil || refresh.Value != "refresh-token" || !refresh.Expires.Equal(testSession.RefreshExpiresAt) {
		t.Fatalf("unexpected refresh cookie: %+v", refresh)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, name, password string) (*domain.Session, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"name":"alice","password":"bad"}`), rec)

	expectDomainCode(t, handler.Login(c), domain.CodeInvalid)
	if findCookie(rec, "access") != nil {
		t.Fatalf("failed login must not set cookies")
	}
}

func TestAuthHandler_RenewRefresh_CookieBeatsBody(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		renewRefreshFn: func(ctx context.Context, refresh string) (*domain.Session, error) {
			if refresh != "from-cookie" {
				t.Fatalf("expected cookie token, got %q", refresh)
			}
			return testSession, nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/renew/refresh", `{"refresh":"from-body"}`), rec)
	c.Set(RefreshKey, "from-cookie")

	if err := handler.RenewRefresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if findCookie(rec, "refresh") == nil || findCookie(rec, "access") == nil {
		t.Fatalf("expected both cookies to be rotated")
	}
}

func TestAuthHandler_RenewAccess(t *testing.T) {
	e := newTestEcho()
	exp := time.Date(2030, 1, 1, 0, 15, 0, 0, time.UTC)
	stub := &stubAuthService{
		renewAccessFn: func(ctx context.Context, refresh string) (*ports.AccessResult, error) {
			if refresh != "from-body" {
				return nil, domain.ErrInvalidRefreshToken
			}
			return &ports.AccessResult{Access: "new-access", Payload: domain.TokenPayload{ExpiresAt: exp}}, nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/renew/access", `{"refresh":"from-body"}`), rec)
	if err := handler.RenewAccess(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	_, data := decodeEnvelope(t, rec)
	if data["access"] != "new-access" {
		t.Fatalf("unexpected payload: %+v", data)
	}
	if cookie := findCookie(rec, "access"); cookie == nil || !cookie.Expires.Equal(exp) {
		t.Fatalf("unexpected access cookie: %+v", cookie)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/renew/access", nil), httptest.NewRecorder())
	expectDomainCode(t, handler.RenewAccess(c), domain.CodeInvalid)
}

func TestAuthHandler_Logout_ClearsCookies(t *testing.T) {
	e := newTestEcho()
	handler := NewAuthHandler(&stubAuthService{}, CookieOptions{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), rec)
	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	for _, name := range []string{"access", "refresh"} {
		cookie := findCookie(rec, name)
		if cookie == nil || cookie.Value != "" || cookie.MaxAge >= 0 {
			t.Fatalf("expected %s cookie to be expired, got %+v", name, cookie)
		}
	}
}

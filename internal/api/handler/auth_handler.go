package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/api/metrics"
	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	cookies     CookieOptions
}

func NewAuthHandler(authService ports.AuthService, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type renewRequest struct {
	Refresh string `json:"refresh"`
}

type sessionResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type accessResponse struct {
	Access string `json:"access"`
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      200   {object}  Envelope
// @Failure      400   {object}  Envelope
// @Failure      409   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.authService.Register(c.Request().Context(), req.Name, req.Password)
	observeAuth("register", err)
	if err != nil {
		return err
	}
	return done(c)
}

// Login authenticates a user, sets the token cookies and returns both tokens.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  Envelope{data=sessionResponse}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Login(c.Request().Context(), req.Name, req.Password)
	observeAuth("login", err)
	if err != nil {
		return err
	}
	return h.writeSession(c, session)
}

// RenewRefresh rotates the refresh token and issues a paired access token.
//
// @Summary      Renew refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      renewRequest  false  "Refresh token when no cookie is sent"
// @Success      200   {object}  Envelope{data=sessionResponse}
// @Failure      401   {object}  Envelope
// @Router       /auth/renew/refresh [post]
func (h *AuthHandler) RenewRefresh(c echo.Context) error {
	var req renewRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.authService.RenewRefresh(c.Request().Context(), refreshToken(c, req.Refresh))
	observeAuth("renew_refresh", err)
	if err != nil {
		return err
	}
	return h.writeSession(c, session)
}

// RenewAccess issues a new access token from a refresh token.
//
// @Summary      Renew access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      renewRequest  false  "Refresh token when no cookie is sent"
// @Success      200   {object}  Envelope{data=accessResponse}
// @Failure      401   {object}  Envelope
// @Router       /auth/renew/access [post]
func (h *AuthHandler) RenewAccess(c echo.Context) error {
	var req renewRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.authService.RenewAccess(c.Request().Context(), refreshToken(c, req.Refresh))
	observeAuth("renew_access", err)
	if err != nil {
		return err
	}

	h.cookies.set(c, AccessKey, res.Access, res.Payload.ExpiresAt)
	return ok(c, accessResponse{Access: res.Access})
}

// Logout clears both token cookies. Tokens themselves stay valid until they expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  Envelope
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.cookies.clear(c, AccessKey)
	h.cookies.clear(c, RefreshKey)
	observeAuth("logout", nil)
	return done(c)
}

func (h *AuthHandler) writeSession(c echo.Context, s *domain.Session) error {
	h.cookies.set(c, AccessKey, s.Access, s.AccessExpiresAt)
	h.cookies.set(c, RefreshKey, s.Refresh, s.RefreshExpiresAt)
	return ok(c, sessionResponse{ID: s.ID, Name: s.Name, Access: s.Access, Refresh: s.Refresh})
}

func observeAuth(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(domain.CodeUnknown)
		if de, isDomain := domain.AsError(err); isDomain {
			result = string(de.Code)
		}
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}

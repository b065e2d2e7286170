package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Context keys and cookie names for tokens. The Credentials middleware fills
// the context from cookies and the Authorization header.
const (
	AccessKey  = "access"
	RefreshKey = "refresh"
)

// accessToken returns the access token, preferring the one the middleware
// found in the cookie or bearer header over the request body.
func accessToken(c echo.Context, fromBody string) string {
	if tok, _ := c.Get(AccessKey).(string); tok != "" {
		return tok
	}
	return fromBody
}

// refreshToken returns the refresh token, cookie first, then body.
func refreshToken(c echo.Context, fromBody string) string {
	if tok, _ := c.Get(RefreshKey).(string); tok != "" {
		return tok
	}
	return fromBody
}

// CookieOptions controls how token cookies are written.
type CookieOptions struct {
	Secure bool
}

func (o CookieOptions) set(c echo.Context, name, value string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (o CookieOptions) clear(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

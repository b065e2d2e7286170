package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/api/handler"
)

// Credentials copies the access and refresh tokens into the context.
// Cookies win over the Authorization header, which can only carry an access
// token. Verification is left to the services so each operation keeps its
// own error order; requests without tokens pass through untouched.
func Credentials() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tok := cookieValue(c, handler.AccessKey); tok != "" {
				c.Set(handler.AccessKey, tok)
			} else if tok := bearerToken(c); tok != "" {
				c.Set(handler.AccessKey, tok)
			}

			if tok := cookieValue(c, handler.RefreshKey); tok != "" {
				c.Set(handler.RefreshKey, tok)
			}

			return next(c)
		}
	}
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

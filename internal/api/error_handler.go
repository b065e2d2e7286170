package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/messaging-system/internal/api/handler"
	"github.com/99minutos/messaging-system/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Renders *domain.Error as-is and validator failures one entry per field.
//   - Maps echo's own errors (unknown route, bad method, bind) onto the taxonomy.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, items := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, handler.Failure(items...))
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, []handler.ErrorItem) {
	if items, ok := handler.ValidationItems(err); ok {
		return handler.ValidationStatus, items
	}

	if de, ok := domain.AsError(err); ok {
		if de.Code == domain.CodeUnknown {
			logUnexpected(log, c, err)
		}
		return de.Status, []handler.ErrorItem{handler.NewErrorItem(de)}
	}

	// Echo's own errors (router 404/405, bind failures, middleware rejections).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		de := domain.NewError(codeForStatus(he.Code), he.Code, fmt.Sprintf("%v", he.Message))
		if de.Code == domain.CodeNotFound {
			de.Status = http.StatusNotFound
			de.Message = "Not found"
		}
		if de.Code == domain.CodeUnknown {
			logUnexpected(log, c, err)
		}
		return de.Status, []handler.ErrorItem{handler.NewErrorItem(de)}
	}

	// Unexpected error: log the real cause, return a generic message.
	logUnexpected(log, c, err)
	return http.StatusInternalServerError, []handler.ErrorItem{handler.NewErrorItem(domain.Wrap(err))}
}

func codeForStatus(status int) domain.ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return domain.CodeValidation
	case http.StatusUnauthorized:
		return domain.CodeUnauthorized
	case http.StatusForbidden:
		return domain.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return domain.CodeNotFound
	case http.StatusTooManyRequests:
		return domain.CodeRateLimited
	default:
		return domain.CodeUnknown
	}
}

func logUnexpected(log zerolog.Logger, c echo.Context, err error) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")
}

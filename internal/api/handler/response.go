package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

// Envelope is the body of every API response.
//
//	success: {"success": true, "data": ...}
//	failure: {"success": false, "errors": [{"code", "path", "message"}]}
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Errors  []ErrorItem `json:"errors,omitempty"`
}

// ErrorItem describes one failure. Path is always an array, possibly empty.
type ErrorItem struct {
	Code    string   `json:"code"`
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// NewErrorItem converts a domain error into its wire form.
func NewErrorItem(e *domain.Error) ErrorItem {
	path := e.Path
	if path == nil {
		path = []string{}
	}
	return ErrorItem{Code: string(e.Code), Path: path, Message: e.Message}
}

// Failure builds a failure envelope.
func Failure(items ...ErrorItem) Envelope {
	return Envelope{Success: false, Errors: items}
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func done(c echo.Context) error {
	return c.JSON(http.StatusOK, Envelope{Success: true})
}

// bind decodes and validates the request into req. Decode failures become
// a validation error so they render like any other bad input.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewError(domain.CodeValidation, http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

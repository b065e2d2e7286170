package domain

import (
	"errors"
	"net/http"
)

// ErrorCode is the machine-readable failure category carried in API errors.
type ErrorCode string

const (
	CodeInvalid      ErrorCode = "invalid"
	CodeDuplicate    ErrorCode = "duplicate"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeForbidden    ErrorCode = "forbidden"
	CodeNotFound     ErrorCode = "not_found"
	CodeMissing      ErrorCode = "missing"
	CodeValidation   ErrorCode = "validation"
	CodeRateLimited  ErrorCode = "rate_limited"
	CodeUnknown      ErrorCode = "unknown"
)

// Error is the single failure type returned by services. The HTTP layer
// renders it as one entry of the envelope's errors array.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Path    []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, domain.ErrForbidden) regardless of message or path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds an Error with an optional path.
func NewError(code ErrorCode, status int, message string, path ...string) *Error {
	return &Error{Code: code, Status: status, Message: message, Path: path}
}

// Wrap returns an unknown error that keeps cause for logging.
func Wrap(cause error) *Error {
	return &Error{Code: CodeUnknown, Status: http.StatusInternalServerError, Message: "Unknown error", Err: cause}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Service-level failures.
var (
	ErrInvalidCredentials  = NewError(CodeInvalid, http.StatusUnauthorized, "Invalid username or password")
	ErrInvalidRefreshToken = NewError(CodeInvalid, http.StatusUnauthorized, "Invalid refresh token")
	ErrUserExists          = NewError(CodeDuplicate, http.StatusConflict, "User already exists")
	ErrUnauthorized        = NewError(CodeUnauthorized, http.StatusUnauthorized, "Unauthorized user")
	ErrForbidden           = NewError(CodeForbidden, http.StatusForbidden, "Forbidden access")
	ErrUserNotFound        = NewError(CodeNotFound, http.StatusNotFound, "User not found")
	ErrRoomNotFound        = NewError(CodeNotFound, http.StatusNotFound, "Room not found")
	ErrMessageNotFound     = NewError(CodeNotFound, http.StatusNotFound, "Message not found")
	ErrMissingLookup       = NewError(CodeMissing, http.StatusBadRequest, "Missing id or name")
	ErrRateLimited         = NewError(CodeRateLimited, http.StatusTooManyRequests, "Too many requests")
	ErrRequestInProgress   = NewError(CodeDuplicate, http.StatusConflict, "Request with this Idempotency-Key is still in progress")
)

// Repository-level sentinels. Services translate these into *Error values.
var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

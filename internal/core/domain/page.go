package domain

import (
	"errors"
	"net/http"
)

// MaxPageSize caps every cursor page.
const MaxPageSize = 100

// ErrInvalidID is returned by repositories when an id or cursor is not a
// well-formed document id.
var ErrInvalidID = errors.New("invalid document id")

// Page selects a window of documents ordered by id. Forward pages use
// After/First, backward pages use Before/Last.
type Page struct {
	After  string
	First  int
	Before string
	Last   int
}

// Backward reports whether the page walks ids in descending order.
func (p Page) Backward() bool {
	return p.Before != "" || p.Last > 0
}

// Limit returns the page size, defaulting to and capped at MaxPageSize.
func (p Page) Limit() int {
	n := p.First
	if p.Backward() {
		n = p.Last
	}
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Validate rejects pages that mix both directions or carry negative sizes.
func (p Page) Validate() error {
	forward := p.After != "" || p.First > 0
	if forward && p.Backward() {
		return NewError(CodeValidation, http.StatusBadRequest, "Use either after/first or before/last", "before")
	}
	if p.First < 0 {
		return NewError(CodeValidation, http.StatusBadRequest, "first must not be negative", "first")
	}
	if p.Last < 0 {
		return NewError(CodeValidation, http.StatusBadRequest, "last must not be negative", "last")
	}
	return nil
}

// InvalidCursor is the error returned when After or Before is malformed.
func (p Page) InvalidCursor() error {
	field := "after"
	if p.Before != "" {
		field = "before"
	}
	return NewError(CodeValidation, http.StatusBadRequest, "Invalid cursor", field)
}

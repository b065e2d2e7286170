package ports

import (
	"context"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

// UpdateUserInput carries a profile change. Nil fields are left untouched.
type UpdateUserInput struct {
	Access   string
	ID       string
	Name     *string
	Password *string
}

// AccessResult is returned by RenewAccess.
type AccessResult struct {
	Access  string
	Payload domain.TokenPayload
}

// AuthService covers registration, sessions and account changes.
type AuthService interface {
	Register(ctx context.Context, name, password string) error
	Login(ctx context.Context, name, password string) (*domain.Session, error)
	RenewAccess(ctx context.Context, refresh string) (*AccessResult, error)
	RenewRefresh(ctx context.Context, refresh string) (*domain.Session, error)
	UpdateUser(ctx context.Context, input UpdateUserInput) error
	// FindUser looks a user up by id, or by name when id is empty.
	FindUser(ctx context.Context, id, name string) (*domain.Profile, error)
}

package ports

import (
	"context"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

// UserRepository persists user accounts.
// Lookups return domain.ErrNotFound when nothing matches, including
// malformed ids. Writes return domain.ErrDuplicate when the name is taken.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByName(ctx context.Context, name string) (*domain.User, error)
	Update(ctx context.Context, id string, update domain.UserUpdate) error
}

package ports

import (
	"context"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

// RoomRepository persists rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) (*domain.Room, error)
	FindByID(ctx context.Context, id string) (*domain.Room, error)
	// List returns one cursor page. Malformed cursors yield domain.ErrInvalidID.
	List(ctx context.Context, page domain.Page) ([]*domain.Room, error)
	Update(ctx context.Context, id string, update domain.RoomUpdate) error
	Delete(ctx context.Context, id string) error
}

// MessageRepository persists messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// ListByRoom returns one cursor page of a room's messages.
	ListByRoom(ctx context.Context, roomID string, page domain.Page) ([]*domain.Message, error)
	Delete(ctx context.Context, id string) error
}

package ports

import (
	"context"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

// CreateRoomInput carries the data needed to open a room.
type CreateRoomInput struct {
	Access      string
	Name        string
	Description string
}

// UpdateRoomInput carries a room change. Nil fields are left untouched.
type UpdateRoomInput struct {
	Access      string
	ID          string
	Name        *string
	Description *string
}

// RoomService defines use-case operations for rooms.
type RoomService interface {
	Create(ctx context.Context, input CreateRoomInput) (string, error)
	List(ctx context.Context, page domain.Page) ([]*domain.Room, error)
	Find(ctx context.Context, id string) (*domain.Room, error)
	Update(ctx context.Context, input UpdateRoomInput) error
	Delete(ctx context.Context, access, id string) error
}

// CreateMessageInput carries a new message. IdempotencyKey is optional.
type CreateMessageInput struct {
	Access         string
	RoomID         string
	Content        string
	IdempotencyKey string
}

// MessageResult is returned after posting a message.
type MessageResult struct {
	ID string
	// AlreadyExisted is true when the Idempotency-Key matched an earlier message.
	AlreadyExisted bool
}

// MessageService defines use-case operations for messages.
type MessageService interface {
	Create(ctx context.Context, input CreateMessageInput) (*MessageResult, error)
	List(ctx context.Context, roomID string, page domain.Page) ([]*domain.Message, error)
	Delete(ctx context.Context, access, id string) error
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

type roomService struct {
	rooms  ports.RoomRepository
	access ports.TokenIssuer
	log    zerolog.Logger
}

// NewRoomService returns a RoomService implementation.
func NewRoomService(rooms ports.RoomRepository, access ports.TokenIssuer, log zerolog.Logger) ports.RoomService {
	return &roomService{rooms: rooms, access: access, log: log}
}

func (s *roomService) Create(ctx context.Context, in ports.CreateRoomInput) (string, error) {
	payload, ok := s.access.Verify(in.Access)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	if err := requireField("name", in.Name); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	room, err := s.rooms.Create(ctx, &domain.Room{
		OwnerID:     payload.ID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return "", domain.Wrap(err)
	}

	s.log.Info().Str("room_id", room.ID).Str("owner_id", payload.ID).Msg("room created")
	return room.ID, nil
}

func (s *roomService) List(ctx context.Context, page domain.Page) ([]*domain.Room, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	rooms, err := s.rooms.List(ctx, page)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidID) {
			return nil, page.InvalidCursor()
		}
		return nil, domain.Wrap(err)
	}
	return rooms, nil
}

func (s *roomService) Find(ctx context.Context, id string) (*domain.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, domain.Wrap(err)
	}
	return room, nil
}

func (s *roomService) Update(ctx context.Context, in ports.UpdateRoomInput) error {
	if _, err := s.authorizeOwner(ctx, in.Access, in.ID); err != nil {
		return err
	}

	update := domain.RoomUpdate{Name: in.Name, Description: in.Description}
	if update.Name != nil && *update.Name == "" {
		update.Name = nil
	}
	if update.Name == nil && update.Description == nil {
		return nil
	}

	if err := s.rooms.Update(ctx, in.ID, update); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrRoomNotFound
		}
		return domain.Wrap(err)
	}
	return nil
}

func (s *roomService) Delete(ctx context.Context, access, id string) error {
	if _, err := s.authorizeOwner(ctx, access, id); err != nil {
		return err
	}

	if err := s.rooms.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrRoomNotFound
		}
		return domain.Wrap(err)
	}

	s.log.Info().Str("room_id", id).Msg("room deleted")
	return nil
}

// authorizeOwner returns the room when the access token belongs to its owner.
func (s *roomService) authorizeOwner(ctx context.Context, access, id string) (*domain.Room, error) {
	payload, ok := s.access.Verify(access)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	room, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != payload.ID {
		return nil, domain.ErrForbidden
	}
	return room, nil
}

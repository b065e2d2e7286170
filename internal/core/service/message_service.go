package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

// IdempotencyStore abstracts the Idempotency-Key store (Redis).
// Reserve must be atomic: only one caller per key gets reserved == true.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (id string, reserved bool, err error)
	Complete(ctx context.Context, scope, key, id string) error
	Release(ctx context.Context, scope, key string) error
}

const (
	idemPollInterval = 50 * time.Millisecond
	idemMaxWait      = 2 * time.Second
)

type messageService struct {
	messages ports.MessageRepository
	rooms    ports.RoomRepository
	access   ports.TokenIssuer
	idem     IdempotencyStore
	log      zerolog.Logger

	pollInterval time.Duration
	maxWait      time.Duration
}

// NewMessageService returns a MessageService implementation. idem may be nil,
// in which case Idempotency-Key headers are ignored.
func NewMessageService(
	messages ports.MessageRepository,
	rooms ports.RoomRepository,
	access ports.TokenIssuer,
	idem IdempotencyStore,
	log zerolog.Logger,
) ports.MessageService {
	return &messageService{
		messages: messages,
		rooms:    rooms,
		access:   access,
		idem:     idem,
		log:      log,

		pollInterval: idemPollInterval,
		maxWait:      idemMaxWait,
	}
}

// Create posts a message to an existing room as the token owner.
func (s *messageService) Create(ctx context.Context, in ports.CreateMessageInput) (*ports.MessageResult, error) {
	payload, ok := s.access.Verify(in.Access)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := requireField("content", in.Content); err != nil {
		return nil, err
	}

	// Claim the key. Store failures are logged and the message is created anyway.
	useIdem := s.idem != nil && in.IdempotencyKey != ""
	if useIdem {
		id, reserved, err := s.reserve(ctx, payload.ID, in.IdempotencyKey)
		switch {
		case errors.Is(err, domain.ErrRequestInProgress):
			return nil, err
		case err != nil && ctx.Err() != nil:
			return nil, domain.Wrap(err)
		case err != nil:
			s.log.Warn().Err(err).Str("sender", payload.ID).Msg("idempotency store failed, creating anyway")
			useIdem = false
		case !reserved:
			s.log.Debug().Str("message_id", id).Msg("idempotent replay")
			return &ports.MessageResult{ID: id, AlreadyExisted: true}, nil
		}
	}

	msg, err := s.insert(ctx, in, payload.ID)
	if err != nil {
		if useIdem {
			if rerr := s.idem.Release(context.WithoutCancel(ctx), payload.ID, in.IdempotencyKey); rerr != nil {
				s.log.Warn().Err(rerr).Str("sender", payload.ID).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}

	if useIdem {
		if err := s.idem.Complete(ctx, payload.ID, in.IdempotencyKey, msg.ID); err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to store idempotency key")
		}
	}

	return &ports.MessageResult{ID: msg.ID}, nil
}

// reserve claims key for sender. While another request holds the key it polls
// until that request stores its id, and gives up with ErrRequestInProgress.
func (s *messageService) reserve(ctx context.Context, sender, key string) (string, bool, error) {
	deadline := time.Now().Add(s.maxWait)
	for {
		id, reserved, err := s.idem.Reserve(ctx, sender, key)
		if err != nil || reserved || id != "" {
			return id, reserved, err
		}
		if time.Now().After(deadline) {
			return "", false, domain.ErrRequestInProgress
		}

		t := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", false, ctx.Err()
		case <-t.C:
		}
	}
}

// insert checks the room and stores the message.
func (s *messageService) insert(ctx context.Context, in ports.CreateMessageInput, sender string) (*domain.Message, error) {
	if _, err := s.rooms.FindByID(ctx, in.RoomID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, domain.Wrap(err)
	}

	now := time.Now().UTC()
	msg, err := s.messages.Create(ctx, &domain.Message{
		RoomID:    in.RoomID,
		Sender:    sender,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, domain.Wrap(err)
	}
	return msg, nil
}

func (s *messageService) List(ctx context.Context, roomID string, page domain.Page) ([]*domain.Message, error) {
	if err := requireField("roomId", roomID); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, domain.Wrap(err)
	}

	msgs, err := s.messages.ListByRoom(ctx, roomID, page)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidID) {
			return nil, page.InvalidCursor()
		}
		return nil, domain.Wrap(err)
	}
	return msgs, nil
}

// Delete removes a message. Only its sender may do so.
func (s *messageService) Delete(ctx context.Context, access, id string) error {
	payload, ok := s.access.Verify(access)
	if !ok {
		return domain.ErrUnauthorized
	}

	msg, err := s.messages.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrMessageNotFound
		}
		return domain.Wrap(err)
	}
	if msg.Sender != payload.ID {
		return domain.ErrForbidden
	}

	if err := s.messages.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrMessageNotFound
		}
		return domain.Wrap(err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
)

// AuthService implements registration, sessions and account updates.
type AuthService struct {
	users   ports.UserRepository
	hasher  ports.PasswordHasher
	access  ports.TokenIssuer
	refresh ports.TokenIssuer
	log     zerolog.Logger

	// dummyHash is verified against when a login names an unknown user so
	// both failure paths cost one hash verification.
	dummyHash string
}

func NewAuthService(
	users ports.UserRepository,
	hasher ports.PasswordHasher,
	access ports.TokenIssuer,
	refresh ports.TokenIssuer,
	log zerolog.Logger,
) *AuthService {
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		log.Warn().Err(err).Msg("could not precompute dummy hash")
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		access:    access,
		refresh:   refresh,
		log:       log,
		dummyHash: dummy,
	}
}

func (s *AuthService) Register(ctx context.Context, name, password string) error {
	if err := requireField("name", name); err != nil {
		return err
	}
	if err := requireField("password", password); err != nil {
		return err
	}

	// Fast path. The unique index on name settles concurrent registrations.
	_, err := s.users.FindByName(ctx, name)
	switch {
	case err == nil:
		return domain.ErrUserExists
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.Wrap(err)
	}

	now := time.Now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.ErrUserExists
		}
		return domain.Wrap(err)
	}

	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return nil
}

func (s *AuthService) Login(ctx context.Context, name, password string) (*domain.Session, error) {
	user, err := s.users.FindByName(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Wrap(err)
		}
		s.hasher.Verify(s.dummyHash, password)
		return nil, domain.ErrInvalidCredentials
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issueSession(user.ID, user.Name)
}

// RenewAccess trades a valid refresh token for a new access token.
func (s *AuthService) RenewAccess(_ context.Context, refresh string) (*ports.AccessResult, error) {
	payload, ok := s.refresh.Verify(refresh)
	if !ok {
		return nil, domain.ErrInvalidRefreshToken
	}

	token, accessPayload, err := s.access.Sign(payload.ID, payload.Name)
	if err != nil {
		return nil, domain.Wrap(err)
	}
	return &ports.AccessResult{Access: token, Payload: accessPayload}, nil
}

// RenewRefresh rotates the refresh token and pairs it with a fresh access token.
func (s *AuthService) RenewRefresh(_ context.Context, refresh string) (*domain.Session, error) {
	payload, ok := s.refresh.Verify(refresh)
	if !ok {
		return nil, domain.ErrInvalidRefreshToken
	}
	return s.issueSession(payload.ID, payload.Name)
}

// UpdateUser changes the name and/or password of the token owner.
// Checks run in order: target exists, token valid, token owns target.
func (s *AuthService) UpdateUser(ctx context.Context, in ports.UpdateUserInput) error {
	user, err := s.users.FindByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Wrap(err)
	}

	payload, ok := s.access.Verify(in.Access)
	if !ok {
		return domain.ErrUnauthorized
	}
	if payload.ID != user.ID {
		return domain.ErrForbidden
	}

	var update domain.UserUpdate
	if in.Name != nil && *in.Name != "" {
		update.Name = in.Name
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return domain.Wrap(err)
		}
		update.PasswordHash = &hash
	}
	if update.Name == nil && update.PasswordHash == nil {
		return nil
	}

	if err := s.users.Update(ctx, user.ID, update); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			return domain.ErrUserExists
		case errors.Is(err, domain.ErrNotFound):
			return domain.ErrUserNotFound
		}
		return domain.Wrap(err)
	}

	s.log.Info().Str("user_id", user.ID).Bool("name_changed", update.Name != nil).
		Bool("password_changed", update.PasswordHash != nil).Msg("user updated")
	return nil
}

func (s *AuthService) FindUser(ctx context.Context, id, name string) (*domain.Profile, error) {
	var (
		user *domain.User
		err  error
	)
	switch {
	case id != "":
		user, err = s.users.FindByID(ctx, id)
	case name != "":
		user, err = s.users.FindByName(ctx, name)
	default:
		return nil, domain.ErrMissingLookup
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Wrap(err)
	}

	profile := user.Profile()
	return &profile, nil
}

func (s *AuthService) issueSession(id, name string) (*domain.Session, error) {
	access, accessPayload, err := s.access.Sign(id, name)
	if err != nil {
		return nil, domain.Wrap(err)
	}
	refresh, refreshPayload, err := s.refresh.Sign(id, name)
	if err != nil {
		return nil, domain.Wrap(err)
	}

	return &domain.Session{
		ID:               id,
		Name:             name,
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessPayload.ExpiresAt,
		RefreshExpiresAt: refreshPayload.ExpiresAt,
	}, nil
}

func requireField(field, value string) error {
	if value == "" {
		return domain.NewError(domain.CodeValidation, http.StatusBadRequest, field+" is required", field)
	}
	return nil
}

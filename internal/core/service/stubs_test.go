package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/messaging-system/internal/core/domain"
	"github.com/99minutos/messaging-system/internal/core/ports"
	"github.com/99minutos/messaging-system/internal/infrastructure/security"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type idSeq struct {
	mu sync.Mutex
	n  int
}

func (s *idSeq) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%024x", s.n)
}

// stubUserRepo enforces name uniqueness the way the unique index does.
type stubUserRepo struct {
	mu    sync.Mutex
	ids   idSeq
	users map[string]*domain.User // keyed by id
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == user.Name {
			return nil, domain.ErrDuplicate
		}
	}
	created := cloneUser(user)
	created.ID = r.ids.next()
	r.users[created.ID] = cloneUser(created)
	return created, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByName(_ context.Context, name string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == name {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) Update(_ context.Context, id string, update domain.UserUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Name != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Name == *update.Name {
				return domain.ErrDuplicate
			}
		}
		u.Name = *update.Name
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// racyUserRepo hides existing users from FindByName so every Register reaches Create.
type racyUserRepo struct {
	*stubUserRepo
}

func (r racyUserRepo) FindByName(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

type failingUserRepo struct {
	stubUserRepo
	err error
}

func (r *failingUserRepo) FindByName(context.Context, string) (*domain.User, error) {
	return nil, r.err
}

type stubRoomRepo struct {
	mu    sync.Mutex
	ids   idSeq
	rooms map[string]*domain.Room
}

func newStubRoomRepo() *stubRoomRepo {
	return &stubRoomRepo{rooms: make(map[string]*domain.Room)}
}

func (r *stubRoomRepo) Create(_ context.Context, room *domain.Room) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := *room
	created.ID = r.ids.next()
	stored := created
	r.rooms[created.ID] = &stored
	return &created, nil
}

func (r *stubRoomRepo) FindByID(_ context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *room
	return &clone, nil
}

func (r *stubRoomRepo) List(_ context.Context, page domain.Page) ([]*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !validHexID(page.After) || !validHexID(page.Before) {
		return nil, domain.ErrInvalidID
	}

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if page.Backward() {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	}

	out := make([]*domain.Room, 0)
	for _, id := range ids {
		if page.After != "" && id <= page.After {
			continue
		}
		if page.Before != "" && id >= page.Before {
			continue
		}
		clone := *r.rooms[id]
		out = append(out, &clone)
		if len(out) == page.Limit() {
			break
		}
	}
	return out, nil
}

func (r *stubRoomRepo) Update(_ context.Context, id string, update domain.RoomUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Name != nil {
		room.Name = *update.Name
	}
	if update.Description != nil {
		room.Description = *update.Description
	}
	return nil
}

func (r *stubRoomRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.rooms, id)
	return nil
}

type stubMessageRepo struct {
	mu       sync.Mutex
	ids      idSeq
	messages map[string]*domain.Message
	creates  int
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{messages: make(map[string]*domain.Message)}
}

func (r *stubMessageRepo) Create(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	created := *msg
	created.ID = r.ids.next()
	stored := created
	r.messages[created.ID] = &stored
	return &created, nil
}

func (r *stubMessageRepo) FindByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *stubMessageRepo) ListByRoom(_ context.Context, roomID string, page domain.Page) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !validHexID(page.After) || !validHexID(page.Before) {
		return nil, domain.ErrInvalidID
	}
	ids := make([]string, 0)
	for id, m := range r.messages {
		if m.RoomID == roomID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*domain.Message, 0, len(ids))
	for _, id := range ids {
		clone := *r.messages[id]
		out = append(out, &clone)
	}
	return out, nil
}

func (r *stubMessageRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

type stubIdempotency struct {
	mu      sync.Mutex
	entries map[string]string
	err     error
}

const stubPending = "pending"

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{entries: make(map[string]string)}
}

func (s *stubIdempotency) Reserve(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	id, ok := s.entries[scope+":"+key]
	if !ok {
		s.entries[scope+":"+key] = stubPending
		return "", true, nil
	}
	if id == stubPending {
		return "", false, nil
	}
	return id, false, nil
}

func (s *stubIdempotency) Complete(_ context.Context, scope, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries[scope+":"+key] = id
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.entries, scope+":"+key)
	return nil
}

// slowRoomRepo delays room lookups so concurrent creates overlap.
type slowRoomRepo struct {
	*stubRoomRepo
	delay time.Duration
}

func (r slowRoomRepo) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	time.Sleep(r.delay)
	return r.stubRoomRepo.FindByID(ctx, id)
}

func validHexID(id string) bool {
	if id == "" {
		return true
	}
	if len(id) != 24 {
		return false
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type fixture struct {
	users   ports.UserRepository
	access  *security.TokenIssuer
	refresh *security.TokenIssuer
	auth    *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, newStubUserRepo())
}

func newFixtureWithRepo(t *testing.T, users ports.UserRepository) *fixture {
	t.Helper()
	access, err := security.NewTokenIssuer(domain.TokenAccess, "access-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("access issuer: %v", err)
	}
	refresh, err := security.NewTokenIssuer(domain.TokenRefresh, "refresh-secret", 365*24*time.Hour)
	if err != nil {
		t.Fatalf("refresh issuer: %v", err)
	}
	return &fixture{
		users:   users,
		access:  access,
		refresh: refresh,
		auth:    NewAuthService(users, security.NewArgon2idHasher(), access, refresh, zerolog.Nop()),
	}
}

// accessFor returns an access token for a registered user.
func (f *fixture) accessFor(t *testing.T, name, password string) (string, string) {
	t.Helper()
	if err := f.auth.Register(context.Background(), name, password); err != nil && !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("register %s: %v", name, err)
	}
	session, err := f.auth.Login(context.Background(), name, password)
	if err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	return session.ID, session.Access
}

func expectCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected *domain.Error with code %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, de.Code, de.Message)
	}
}

package domain

import "time"

// User is a registered account. Name is unique across the collection.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

// Profile is what the API exposes about a user. It never carries the hash.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserUpdate lists the fields that may change on a user. Nil means unchanged.
type UserUpdate struct {
	Name         *string
	PasswordHash *string
}

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenPayload is the identity recovered from a verified token.
type TokenPayload struct {
	ID        string
	Name      string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the result of a successful login or refresh renewal.
type Session struct {
	ID      string
	Name    string
	Access  string
	Refresh string

	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

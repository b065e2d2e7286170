package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

// ErrEmptySecret is returned when an issuer is built without a signing secret.
var ErrEmptySecret = errors.New("token secret cannot be empty")

type claims struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens of a single kind. Access and
// refresh tokens use separate issuers with separate secrets.
type TokenIssuer struct {
	kind   domain.TokenKind
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customises a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock replaces time.Now, used by tests to control expiry.
func WithClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) { t.now = now }
}

func NewTokenIssuer(kind domain.TokenKind, secret string, ttl time.Duration, opts ...IssuerOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	t := &TokenIssuer{kind: kind, secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Sign issues a token for the given identity.
func (t *TokenIssuer) Sign(id, name string) (string, domain.TokenPayload, error) {
	// JWT NumericDate has second precision; truncate so the payload matches the token.
	now := t.now().UTC().Truncate(time.Second)
	exp := now.Add(t.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		ID:   id,
		Name: name,
		Type: string(t.kind),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", domain.TokenPayload{}, fmt.Errorf("sign %s token: %w", t.kind, err)
	}

	return signed, domain.TokenPayload{
		ID:        id,
		Name:      name,
		Kind:      t.kind,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify parses token and reports whether it is valid for this issuer.
func (t *TokenIssuer) Verify(token string) (domain.TokenPayload, bool) {
	if token == "" {
		return domain.TokenPayload{}, false
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(tkn *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return domain.TokenPayload{}, false
	}
	if c.Type != string(t.kind) || c.ID == "" {
		return domain.TokenPayload{}, false
	}

	payload := domain.TokenPayload{ID: c.ID, Name: c.Name, Kind: t.kind}
	if c.IssuedAt != nil {
		payload.IssuedAt = c.IssuedAt.Time.UTC()
	}
	payload.ExpiresAt = c.ExpiresAt.Time.UTC()
	return payload, true
}

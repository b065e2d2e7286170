package ports

import "github.com/99minutos/messaging-system/internal/core/domain"

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. Malformed hashes never match.
	Verify(hash, password string) bool
}

// TokenIssuer signs and verifies one kind of token.
type TokenIssuer interface {
	Sign(id, name string) (string, domain.TokenPayload, error)
	// Verify returns the payload and true only for a well-formed, correctly
	// signed, unexpired token of the issuer's kind.
	Verify(token string) (domain.TokenPayload, bool)
}

package apisession

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access tokens from refresh tokens when validating.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the decoded claim set of a session token. The client only ever
// decodes claims; it never issues or mutates them.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Kind      TokenKind
}

type tokenClaims struct {
	Kind string `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken checks that tokenString is a structurally well-formed token
// of the expected kind and returns its decoded claims.
//
// This is a shape and sanity check only. The signature segment must be
// present but is never verified -- verification is the server's job, and a
// client that "verified" signatures would need key material it has no
// business holding.
func ValidateToken(tokenString string, kind TokenKind) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidFormat
	}
	for _, part := range parts {
		if part == "" {
			return nil, ErrInvalidFormat
		}
	}

	var decoded tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &decoded); err != nil {
		return nil, ErrInvalidFormat
	}

	if decoded.Subject == "" || decoded.ExpiresAt == nil {
		return nil, ErrMissingClaims
	}
	if decoded.Kind != "" && decoded.Kind != string(kind) {
		return nil, ErrWrongKind
	}

	claims := &Claims{
		Subject:   decoded.Subject,
		ExpiresAt: decoded.ExpiresAt.Time,
		Kind:      kind,
	}
	if decoded.IssuedAt != nil {
		claims.IssuedAt = decoded.IssuedAt.Time
	}
	if decoded.Kind != "" {
		claims.Kind = TokenKind(decoded.Kind)
	}
	return claims, nil
}

package apisession

import "errors"

var (
	// ErrInvalidFormat is returned when a token string is not structurally a
	// three-segment token or its claims segment cannot be decoded.
	ErrInvalidFormat = errors.New("token has invalid format")
	// ErrMissingClaims is returned when a token decodes but lacks a subject
	// or expiry claim.
	ErrMissingClaims = errors.New("token missing required claims")
	// ErrWrongKind is returned when a token carries a kind claim that does
	// not match the kind being validated.
	ErrWrongKind = errors.New("token kind mismatch")
	// ErrNoRefreshToken is returned when a renewal is requested but the
	// session holds no usable refresh token. The session is cleared before
	// this error is returned.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrUnauthorized is returned when an operation requiring authentication
	// is executed against a session with no access token at all.
	ErrUnauthorized = errors.New("no access token in session")
)

// ErrorClass classifies a normalized response. Only AuthorizationFailure
// triggers the executor's renew-and-retry cycle; every other class is
// returned to the caller untouched.
type ErrorClass int

const (
	// Success means the operation completed and Data is populated.
	Success ErrorClass = iota
	// AuthorizationFailure means the server rejected the credential itself.
	AuthorizationFailure
	// ValidationFailure means the server rejected the operation's input.
	ValidationFailure
	// NotFound means the addressed resource does not exist.
	NotFound
	// ServerFailure covers every other remote failure.
	ServerFailure
)

// String returns a stable name for the class, suitable for logs.
func (c ErrorClass) String() string {
	switch c {
	case Success:
		return "success"
	case AuthorizationFailure:
		return "authorization_failure"
	case ValidationFailure:
		return "validation_failure"
	case NotFound:
		return "not_found"
	default:
		return "server_failure"
	}
}

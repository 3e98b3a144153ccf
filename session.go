package apisession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// OperationNames configures the names of the dedicated auth operations the
// session dispatches on its own behalf.
type OperationNames struct {
	Login string
	Renew string
}

// DefaultOperationNames returns the conventional operation names.
func DefaultOperationNames() OperationNames {
	return OperationNames{Login: "login", Renew: "refreshToken"}
}

// Session manages the lifecycle of an access/refresh token pair for one
// remote endpoint: login, proactive renewal, restoration, and invalidation
// notification. Construct one per logical client with New; all methods are
// safe for concurrent use.
type Session struct {
	transport  Transport
	normalizer Normalizer
	logger     *slog.Logger
	ops        OperationNames

	store *tokenStore
	group singleflight.Group
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger for renewal and invalidation events.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExpiryBuffers overrides the per-tier renewal lookahead windows.
func WithExpiryBuffers(critical, high, normal time.Duration) SessionOption {
	return func(s *Session) {
		s.store.buffers = [3]time.Duration{critical, high, normal}
	}
}

// WithOperationNames overrides the login/renew operation names.
func WithOperationNames(ops OperationNames) SessionOption {
	return func(s *Session) {
		if ops.Login != "" {
			s.ops.Login = ops.Login
		}
		if ops.Renew != "" {
			s.ops.Renew = ops.Renew
		}
	}
}

// WithClock sets the time source, for deterministic tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.store.now = now
		}
	}
}

// New creates a session bound to the given transport and normalizer.
func New(transport Transport, normalizer Normalizer, opts ...SessionOption) *Session {
	s := &Session{
		transport:  transport,
		normalizer: normalizer,
		logger:     slog.Default(),
		ops:        DefaultOperationNames(),
		store:      newTokenStore(time.Now),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tokenPayload is the wire shape of a token pair returned by the login and
// renew operations. Expiries are epoch milliseconds; zero means the expiry
// should be derived from the token's own exp claim.
type tokenPayload struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	ExpiresAt        int64  `json:"expiresAt,omitempty"`
	RefreshExpiresAt int64  `json:"refreshExpiresAt,omitempty"`
}

func (p *tokenPayload) tokenData() TokenData {
	data := TokenData{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if p.ExpiresAt != 0 {
		data.ExpiresAt = time.UnixMilli(p.ExpiresAt)
	}
	if p.RefreshExpiresAt != 0 {
		data.RefreshExpiresAt = time.UnixMilli(p.RefreshExpiresAt)
	}
	return data
}

// Login authenticates with the given identifier and secret. On success the
// returned token pair is stored; on a normalized failure the response is
// returned as-is and the existing session state is left untouched.
func (s *Session) Login(ctx context.Context, identifier, secret string) (*Response, error) {
	op := Operation{
		Name:      s.ops.Login,
		Variables: map[string]any{"identifier": identifier, "password": secret},
	}
	raw, err := s.transport.Send(ctx, op, "")
	if err != nil {
		return nil, fmt.Errorf("login dispatch failed: %w", err)
	}

	resp := s.normalizer.Normalize(raw)
	if !resp.Success() {
		return resp, nil
	}

	var payload tokenPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("login returned unreadable token payload: %w", err)
	}
	if err := s.store.assign(payload.tokenData()); err != nil {
		return nil, fmt.Errorf("login returned invalid access token: %w", err)
	}

	s.logger.Debug("session established", "subject", s.subject())
	return resp, nil
}

// Logout clears the session and fires the invalidation callback if one is
// registered. It always succeeds, even when the session is already empty.
func (s *Session) Logout() error {
	s.store.clear()
	return nil
}

// SetTokens restores a previously persisted token pair. It applies the same
// validation rules as internal renewal assignment: an invalid access token
// clears the session entirely and returns the validation error.
func (s *Session) SetTokens(data TokenData) error {
	return s.store.assign(data)
}

// TokenData returns a snapshot of the current credentials for external
// persistence.
func (s *Session) TokenData() TokenData {
	return s.store.snapshot()
}

// IsAuthenticated reports whether the stored access token structurally
// validates and has not passed its hard expiry. This is distinct from the
// expiring-soon checks used to schedule renewal.
func (s *Session) IsAuthenticated() bool {
	snap := s.store.snapshot()
	if snap.AccessToken == "" {
		return false
	}
	if _, err := ValidateToken(snap.AccessToken, KindAccess); err != nil {
		return false
	}
	return snap.IsValid
}

// OnInvalidated registers the invalidation callback, replacing any previous
// registration. The callback fires once per session-clearing event: renewal
// failure, logout, or an invalid token assignment. Pass nil to unregister.
func (s *Session) OnInvalidated(fn func()) {
	s.store.setInvalidated(fn)
}

// Renew forces a renewal of the token pair regardless of how close the
// access token is to expiry. Concurrent calls share a single renewal.
func (s *Session) Renew(ctx context.Context) (TokenData, error) {
	return s.renew(ctx, true)
}

// AccessToken returns an access token fresh enough to dispatch with,
// renewing at the high urgency tier when needed. It returns ErrUnauthorized
// when the session holds no token at all.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	if !s.store.hasAccessToken() {
		return "", ErrUnauthorized
	}
	if s.store.isAccessExpiring(TierHigh) {
		if _, err := s.renew(ctx, false); err != nil {
			return "", err
		}
	}
	return s.store.snapshot().AccessToken, nil
}

func (s *Session) subject() string {
	claims, err := ValidateToken(s.store.snapshot().AccessToken, KindAccess)
	if err != nil {
		return ""
	}
	return claims.Subject
}

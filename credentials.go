package apisession

import (
	"sync"
	"time"
)

// ExpiryTier names a renewal-urgency lookahead window. Higher urgency means a
// shorter lookahead: critical only fires right before hard expiry, normal
// fires well ahead of it.
type ExpiryTier int

const (
	TierCritical ExpiryTier = iota
	TierHigh
	TierNormal
)

// Default lookahead buffers per tier. These are tuning parameters, not
// invariants; override them with WithExpiryBuffers.
const (
	DefaultCriticalBuffer = 30 * time.Second
	DefaultHighBuffer     = 2 * time.Minute
	DefaultNormalBuffer   = 5 * time.Minute
)

// TokenData is a point-in-time snapshot of the session's credentials. It is
// the currency of the persistence boundary: callers persist it externally and
// reinject it later through Session.SetTokens.
type TokenData struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	IsValid          bool      `json:"is_valid"`
}

// tokenStore holds the current token pair and its expiries. Access token and
// access expiry are always set and cleared together; a store is either fully
// populated or fully empty.
type tokenStore struct {
	mu sync.Mutex

	accessToken      string
	refreshToken     string
	accessExpiresAt  time.Time
	refreshExpiresAt time.Time

	buffers [3]time.Duration
	now     func() time.Time

	onInvalidated func()
}

func newTokenStore(now func() time.Time) *tokenStore {
	return &tokenStore{
		buffers: [3]time.Duration{DefaultCriticalBuffer, DefaultHighBuffer, DefaultNormalBuffer},
		now:     now,
	}
}

func (ts *tokenStore) setInvalidated(fn func()) {
	ts.mu.Lock()
	ts.onInvalidated = fn
	ts.mu.Unlock()
}

func (ts *tokenStore) hasAccessToken() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.accessToken != ""
}

// isAccessValid reports whether an access token is present and has not
// passed its hard expiry. A zero expiry means unknown and counts as valid;
// assign always derives an expiry, so this only happens for empty stores.
func (ts *tokenStore) isAccessValid() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.accessToken == "" {
		return false
	}
	return ts.accessExpiresAt.IsZero() || ts.now().Before(ts.accessExpiresAt)
}

// isAccessExpiring reports whether the access token will expire within the
// tier's lookahead buffer. A missing token or expiry counts as expiring.
func (ts *tokenStore) isAccessExpiring(tier ExpiryTier) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.accessToken == "" || ts.accessExpiresAt.IsZero() {
		return true
	}
	return !ts.now().Add(ts.buffers[tier]).Before(ts.accessExpiresAt)
}

// hasUsableRefresh reports whether a renewal can be attempted: a refresh
// token is present and its expiry, when known, has not passed.
func (ts *tokenStore) hasUsableRefresh() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.refreshToken == "" {
		return false
	}
	return ts.refreshExpiresAt.IsZero() || ts.now().Before(ts.refreshExpiresAt)
}

func (ts *tokenStore) snapshot() TokenData {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	data := TokenData{
		AccessToken:      ts.accessToken,
		RefreshToken:     ts.refreshToken,
		ExpiresAt:        ts.accessExpiresAt,
		RefreshExpiresAt: ts.refreshExpiresAt,
	}
	data.IsValid = ts.accessToken != "" &&
		(ts.accessExpiresAt.IsZero() || ts.now().Before(ts.accessExpiresAt))
	return data
}

// assign validates and stores a new token pair. Expiries default to the
// tokens' exp claims when the caller does not supply them. A structurally
// invalid access token clears the whole store rather than leaving it
// partially populated.
func (ts *tokenStore) assign(data TokenData) error {
	claims, err := ValidateToken(data.AccessToken, KindAccess)
	if err != nil {
		ts.clear()
		return err
	}

	accessExpiry := data.ExpiresAt
	if accessExpiry.IsZero() {
		accessExpiry = claims.ExpiresAt
	}
	refreshExpiry := data.RefreshExpiresAt
	if refreshExpiry.IsZero() && data.RefreshToken != "" {
		// Best effort: refresh tokens are opaque to callers, but when
		// they happen to carry an exp claim we can track it.
		if rc, err := ValidateToken(data.RefreshToken, KindRefresh); err == nil {
			refreshExpiry = rc.ExpiresAt
		}
	}

	ts.mu.Lock()
	ts.accessToken = data.AccessToken
	ts.refreshToken = data.RefreshToken
	ts.accessExpiresAt = accessExpiry
	ts.refreshExpiresAt = refreshExpiry
	ts.mu.Unlock()
	return nil
}

// clear resets every token field and fires the invalidation callback, exactly
// once per clearing event. Clearing an already-empty store is a no-op and
// does not notify.
func (ts *tokenStore) clear() {
	ts.mu.Lock()
	wasEmpty := ts.accessToken == "" && ts.refreshToken == ""
	ts.accessToken = ""
	ts.refreshToken = ""
	ts.accessExpiresAt = time.Time{}
	ts.refreshExpiresAt = time.Time{}
	notify := ts.onInvalidated
	ts.mu.Unlock()

	// Fired outside the lock so the callback can call back into the session.
	if !wasEmpty && notify != nil {
		notify()
	}
}

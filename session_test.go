package apisession

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeTransport records dispatched operations and answers through a
// test-supplied handler.
type fakeTransport struct {
	mu      sync.Mutex
	ops     []Operation
	bearers []string
	handler func(op Operation, bearer string) (*RawResponse, error)
}

func (f *fakeTransport) Send(ctx context.Context, op Operation, bearer string) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.bearers = append(f.bearers, bearer)
	handler := f.handler
	f.mu.Unlock()
	return handler(op, bearer)
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops)
}

func (f *fakeTransport) opNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.ops))
	for i, op := range f.ops {
		names[i] = op.Name
	}
	return names
}

func successRaw(t *testing.T, payload any) *RawResponse {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(map[string]json.RawMessage{"data": data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &RawResponse{Status: 200, Body: body}
}

func errorRaw(t *testing.T, status int, code, message string) *RawResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"errors": []map[string]any{
			{"message": message, "extensions": map[string]any{"code": code}},
		},
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &RawResponse{Status: status, Body: body}
}

func tokenRaw(t *testing.T, access, refresh string) *RawResponse {
	t.Helper()
	return successRaw(t, tokenPayload{AccessToken: access, RefreshToken: refresh})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(transport Transport, opts ...SessionOption) *Session {
	opts = append([]SessionOption{WithLogger(quietLogger())}, opts...)
	return New(transport, JSONNormalizer{}, opts...)
}

func TestSession_Login_Success(t *testing.T) {
	access := mintAccessToken(t, "user-1", time.Now().Add(time.Hour))
	refresh := mintRefreshToken(t, "user-1", time.Now().Add(24*time.Hour))

	transport := &fakeTransport{handler: func(op Operation, bearer string) (*RawResponse, error) {
		if op.Name != "login" {
			t.Errorf("unexpected operation: %s", op.Name)
		}
		if op.Variables["identifier"] != "user@example.com" {
			t.Errorf("identifier = %v, want user@example.com", op.Variables["identifier"])
		}
		if bearer != "" {
			t.Errorf("login must be unauthenticated, got bearer %q", bearer)
		}
		return tokenRaw(t, access, refresh), nil
	}}

	session := newTestSession(transport)
	resp, err := session.Login(context.Background(), "user@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !resp.Success() {
		t.Fatalf("Login() class = %v, want success", resp.Class)
	}

	data := session.TokenData()
	if data.AccessToken != access {
		t.Errorf("AccessToken = %q, want stored login token", data.AccessToken)
	}
	if data.RefreshToken != refresh {
		t.Errorf("RefreshToken = %q, want stored login token", data.RefreshToken)
	}
	if !session.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after successful login")
	}
}

func TestSession_Login_FailureLeavesSessionUntouched(t *testing.T) {
	access := mintAccessToken(t, "user-1", time.Now().Add(time.Hour))

	transport := &fakeTransport{handler: func(op Operation, bearer string) (*RawResponse, error) {
		return errorRaw(t, 400, "BAD_USER_INPUT", "wrong password"), nil
	}}

	session := newTestSession(transport)
	if err := session.SetTokens(TokenData{AccessToken: access, RefreshToken: "r.e.f"}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}

	resp, err := session.Login(context.Background(), "user@example.com", "wrong")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Class != ValidationFailure {
		t.Errorf("Login() class = %v, want ValidationFailure", resp.Class)
	}

	if got := session.TokenData().AccessToken; got != access {
		t.Errorf("existing session was touched by a failed login: %q", got)
	}
}

func TestSession_Logout_AlwaysSucceeds(t *testing.T) {
	session := newTestSession(&fakeTransport{})

	// Logout on an already-empty session.
	if err := session.Logout(); err != nil {
		t.Fatalf("Logout() on empty session error = %v", err)
	}

	if err := session.SetTokens(TokenData{
		AccessToken: mintAccessToken(t, "user-1", time.Now().Add(time.Hour)),
	}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}
	if err := session.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if session.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after logout")
	}
	if got := session.TokenData(); got.AccessToken != "" || got.RefreshToken != "" {
		t.Errorf("session not cleared by logout: %+v", got)
	}
}

func TestSession_Logout_FiresInvalidationCallback(t *testing.T) {
	session := newTestSession(&fakeTransport{})
	fired := 0
	session.OnInvalidated(func() { fired++ })

	if err := session.SetTokens(TokenData{
		AccessToken: mintAccessToken(t, "user-1", time.Now().Add(time.Hour)),
	}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}

	_ = session.Logout()
	if fired != 1 {
		t.Fatalf("invalidation callback fired %d times, want 1", fired)
	}

	// Logout on the now-empty session still succeeds but must not re-notify.
	_ = session.Logout()
	if fired != 1 {
		t.Errorf("invalidation callback fired %d times after second logout, want 1", fired)
	}
}

func TestSession_SetTokens_RoundTrip(t *testing.T) {
	access := mintAccessToken(t, "user-1", time.Now().Add(time.Hour))
	refresh := mintRefreshToken(t, "user-1", time.Now().Add(24*time.Hour))
	expiresAt := time.Now().Add(45 * time.Minute).Truncate(time.Millisecond)
	refreshExpiresAt := time.Now().Add(48 * time.Hour).Truncate(time.Millisecond)

	session := newTestSession(&fakeTransport{})
	if err := session.SetTokens(TokenData{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}

	got := session.TokenData()
	if got.AccessToken != access {
		t.Errorf("AccessToken = %q, want injected token", got.AccessToken)
	}
	if got.RefreshToken != refresh {
		t.Errorf("RefreshToken = %q, want injected token", got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(expiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expiresAt)
	}
	if !got.RefreshExpiresAt.Equal(refreshExpiresAt) {
		t.Errorf("RefreshExpiresAt = %v, want %v", got.RefreshExpiresAt, refreshExpiresAt)
	}
	if !got.IsValid {
		t.Error("IsValid = false, want true")
	}
}

func TestSession_SetTokens_InvalidTokenClearsSession(t *testing.T) {
	session := newTestSession(&fakeTransport{})
	if err := session.SetTokens(TokenData{
		AccessToken: mintAccessToken(t, "user-1", time.Now().Add(time.Hour)),
	}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}

	err := session.SetTokens(TokenData{AccessToken: "only.two", RefreshToken: "r"})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("SetTokens() error = %v, want ErrInvalidFormat", err)
	}

	got := session.TokenData()
	if got.AccessToken != "" || got.RefreshToken != "" ||
		!got.ExpiresAt.IsZero() || !got.RefreshExpiresAt.IsZero() {
		t.Errorf("session not fully cleared: %+v", got)
	}
}

func TestSession_IsAuthenticated(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) TokenData
		want bool
	}{
		{
			name: "valid live token",
			data: func(t *testing.T) TokenData {
				return TokenData{AccessToken: mintAccessToken(t, "u", time.Now().Add(time.Hour))}
			},
			want: true,
		},
		{
			name: "expiring soon is still authenticated",
			data: func(t *testing.T) TokenData {
				return TokenData{AccessToken: mintAccessToken(t, "u", time.Now().Add(time.Minute))}
			},
			want: true,
		},
		{
			name: "past hard expiry",
			data: func(t *testing.T) TokenData {
				tok := mintAccessToken(t, "u", time.Now().Add(time.Hour))
				return TokenData{AccessToken: tok, ExpiresAt: time.Now().Add(-time.Second)}
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newTestSession(&fakeTransport{})
			if err := session.SetTokens(tt.data(t)); err != nil {
				t.Fatalf("SetTokens() error = %v", err)
			}
			if got := session.IsAuthenticated(); got != tt.want {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_IsAuthenticated_EmptySession(t *testing.T) {
	session := newTestSession(&fakeTransport{})
	if session.IsAuthenticated() {
		t.Error("IsAuthenticated() = true for empty session")
	}
}

func TestSession_AccessToken_NoSession(t *testing.T) {
	session := newTestSession(&fakeTransport{})
	if _, err := session.AccessToken(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("AccessToken() error = %v, want ErrUnauthorized", err)
	}
}

func TestSession_OnInvalidated_NilUnregisters(t *testing.T) {
	session := newTestSession(&fakeTransport{})
	fired := 0
	session.OnInvalidated(func() { fired++ })
	session.OnInvalidated(nil)

	if err := session.SetTokens(TokenData{
		AccessToken: mintAccessToken(t, "u", time.Now().Add(time.Hour)),
	}); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}
	_ = session.Logout()

	if fired != 0 {
		t.Errorf("unregistered callback fired %d times", fired)
	}
}

// Package grpc adapts an apisession.Session to gRPC clients: per-RPC bearer
// credentials and a unary interceptor that renews and retries once when the
// server rejects the credential.
package grpc

import (
	"context"
	"fmt"

	"github.com/panyam/apisession"
)

// TokenCredentials implements credentials.PerRPCCredentials backed by a
// session. Every RPC gets an access token fresh enough to dispatch with;
// renewal happens through the session's single-flight coordinator.
type TokenCredentials struct {
	Session *apisession.Session

	// Secure controls RequireTransportSecurity. Leave false only for
	// local development against plaintext listeners.
	Secure bool
}

// NewTokenCredentials creates credentials that require transport security.
func NewTokenCredentials(session *apisession.Session) *TokenCredentials {
	return &TokenCredentials{Session: session, Secure: true}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *TokenCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := c.Session.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("session credentials unavailable: %w", err)
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *TokenCredentials) RequireTransportSecurity() bool {
	return c.Secure
}

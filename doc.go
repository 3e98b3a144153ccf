// Package apisession manages the client-side lifecycle of an access/refresh
// token pair against a remote API: login, proactive renewal before expiry,
// deduplication of concurrent renewal attempts, and transparent retry of
// operations that fail because of stale credentials.
//
// # Architecture
//
// A Session owns the token pair. It talks to the remote service through two
// collaborator interfaces: a Transport that dispatches named operations with
// variables, and a Normalizer that converts raw responses into a uniform
// success/error shape with a classified ErrorClass. The only class the
// session acts on is AuthorizationFailure -- everything else passes through
// to the caller untouched.
//
// Renewal is single-flight: no matter how many callers notice a stale token
// at once, exactly one renewal call reaches the network and every caller
// observes that one outcome. Renewal failures clear the session entirely, so
// session state is always either fully authenticated or fully empty.
//
// # Basic Usage
//
// Construct a session against an HTTP endpoint:
//
//	transport := apisession.NewHTTPTransport("https://api.example.com/query", nil)
//	session := apisession.New(transport, apisession.JSONNormalizer{})
//
//	resp, err := session.Login(ctx, "user@example.com", "secret")
//	if err != nil {
//	    // dispatch failure or invalid token payload
//	}
//	if !resp.Success() {
//	    // normalized failure: resp.Class, resp.Message
//	}
//
// Execute operations; expiring tokens are renewed before dispatch and
// rejected credentials trigger exactly one renew-and-retry cycle:
//
//	resp, err = session.Execute(ctx, apisession.Operation{
//	    Name:         "getArticles",
//	    Variables:    map[string]any{"limit": 10},
//	    RequiresAuth: true,
//	})
//
// # Persistence
//
// The session never touches durable storage. Callers persist a snapshot and
// restore it later:
//
//	saved := session.TokenData()
//	// ... write saved somewhere, e.g. stores/fs or stores/gorm ...
//	err := session.SetTokens(saved)
//
// # Invalidation
//
// Register a single callback to observe session-clearing events (renewal
// failure, logout, invalid token assignment):
//
//	session.OnInvalidated(func() { redirectToLogin() })
package apisession

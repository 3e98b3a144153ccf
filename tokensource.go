package apisession

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the session to oauth2.TokenSource so stock oauth2-aware
// HTTP stacks (oauth2.NewClient, oauth2.Transport) ride the same renewal
// machinery. The context is used for renewals triggered by Token.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, session: s}
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.session.AccessToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	data := ts.session.TokenData()
	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      data.ExpiresAt,
	}, nil
}

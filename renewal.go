package apisession

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// renewalKey is the single-flight key: there is only ever one renewal slot
// per session.
const renewalKey = "renew"

// renew is the renewal coordinator. At most one renewal is in flight at any
// time; concurrent callers attach to the in-flight one and all observe the
// same outcome. A caller whose context is cancelled stops waiting, but the
// shared renewal keeps running for the remaining waiters.
//
// Unless forced, renew is a no-op while the access token is not yet stale at
// the high urgency tier, so defensive calls cost nothing.
func (s *Session) renew(ctx context.Context, force bool) (TokenData, error) {
	if !force && !s.store.isAccessExpiring(TierHigh) {
		return s.store.snapshot(), nil
	}

	if !s.store.hasUsableRefresh() {
		s.store.clear()
		return TokenData{}, ErrNoRefreshToken
	}

	ch := s.group.DoChan(renewalKey, func() (any, error) {
		// The renewal is owned by the group of waiters, not by whichever
		// caller happened to start it.
		return s.renewOnce(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return TokenData{}, res.Err
		}
		return res.Val.(TokenData), nil
	case <-ctx.Done():
		return TokenData{}, ctx.Err()
	}
}

// renewOnce performs the single shared renewal: dispatch the renew operation
// with the current refresh token, then atomically install the new pair. Any
// failure clears the whole session so no caller retains a false sense of
// authenticated state.
func (s *Session) renewOnce(ctx context.Context) (TokenData, error) {
	attempt := uuid.NewString()
	snap := s.store.snapshot()
	if snap.RefreshToken == "" {
		s.store.clear()
		return TokenData{}, ErrNoRefreshToken
	}

	s.logger.Debug("renewing session", "attempt", attempt)

	op := Operation{
		Name:      s.ops.Renew,
		Variables: map[string]any{"refreshToken": snap.RefreshToken},
	}
	raw, err := s.transport.Send(ctx, op, "")
	if err != nil {
		s.store.clear()
		s.logger.Warn("renewal dispatch failed", "attempt", attempt, "error", err)
		return TokenData{}, fmt.Errorf("renewal dispatch failed: %w", err)
	}

	resp := s.normalizer.Normalize(raw)
	if !resp.Success() {
		s.store.clear()
		s.logger.Warn("renewal rejected", "attempt", attempt, "class", resp.Class.String())
		return TokenData{}, fmt.Errorf("renewal rejected: %s", resp.Class)
	}

	var payload tokenPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		s.store.clear()
		return TokenData{}, fmt.Errorf("renewal returned unreadable token payload: %w", err)
	}
	if payload.RefreshToken == "" {
		// Servers that do not rotate refresh tokens omit them from the
		// renewal response; keep using the previous one.
		payload.RefreshToken = snap.RefreshToken
	}

	if err := s.store.assign(payload.tokenData()); err != nil {
		return TokenData{}, fmt.Errorf("renewal returned invalid access token: %w", err)
	}

	s.logger.Debug("session renewed", "attempt", attempt)
	return s.store.snapshot(), nil
}

package apisession

import (
	"context"
	"fmt"
)

// Execute dispatches an operation with resilient credential handling:
//
//  1. Operations requiring auth fail fast with ErrUnauthorized when the
//     session holds no access token at all.
//  2. An access token expiring at the high urgency tier is renewed before
//     dispatch; a renewal failure propagates without dispatching.
//  3. When the normalized response is an AuthorizationFailure on the first
//     attempt, the session renews once and redispatches the operation once.
//     The second outcome is returned whatever it is.
//
// Every other normalized outcome is returned as-is. At most two dispatches
// occur per call, so a permanently failing backend can never cause a retry
// loop. A cancelled operation is never retried.
func (s *Session) Execute(ctx context.Context, op Operation) (*Response, error) {
	if op.RequiresAuth {
		if !s.store.hasAccessToken() {
			return nil, ErrUnauthorized
		}
		if s.store.isAccessExpiring(TierHigh) {
			if _, err := s.renew(ctx, false); err != nil {
				return nil, err
			}
		}
	}

	resp, err := s.dispatch(ctx, op)
	if err != nil {
		return nil, err
	}
	if resp.Class != AuthorizationFailure || !op.RequiresAuth {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.logger.Debug("credentials rejected, renewing and retrying once", "operation", op.Name)
	if _, err := s.renew(ctx, true); err != nil {
		return nil, err
	}
	return s.dispatch(ctx, op)
}

func (s *Session) dispatch(ctx context.Context, op Operation) (*Response, error) {
	var bearer string
	if op.RequiresAuth {
		bearer = s.store.snapshot().AccessToken
	}
	raw, err := s.transport.Send(ctx, op, bearer)
	if err != nil {
		return nil, fmt.Errorf("dispatch %q failed: %w", op.Name, err)
	}
	return s.normalizer.Normalize(raw), nil
}

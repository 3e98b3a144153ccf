package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/panyam/apisession"
)

// UnaryRetryInterceptor returns a unary client interceptor that mirrors the
// session executor's resilience contract for gRPC calls: when an RPC fails
// with codes.Unauthenticated, the session renews once and the RPC is
// reissued exactly once. Any other code, and the second attempt whatever its
// outcome, passes through untouched. Cancelled calls are never retried.
func UnaryRetryInterceptor(session *apisession.Session) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		if _, renewErr := session.Renew(ctx); renewErr != nil {
			return renewErr
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

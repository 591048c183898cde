package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// APIKeyMiddleware applies the same key policy as APIKeyInterceptor to the
// kratos HTTP routes, keyed on the route's operation. Swagger UI is mounted
// with HandlePrefix and never reaches this chain.
func APIKeyMiddleware(secret string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		if secret == "" {
			return handler
		}
		return func(ctx context.Context, req any) (any, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, status.Error(codes.Internal, "no transport in context")
			}
			op := tr.Operation()
			if !isPublicOperation(op) {
				if err := verifyAPIKey(op, tr.RequestHeader().Get("X-API-Key"), secret); err != nil {
					return nil, err
				}
			}
			return handler(ctx, req)
		}
	}
}

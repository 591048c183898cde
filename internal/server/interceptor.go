package server

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
)

// publicOperations need no API key on either transport. The tool catalog is
// public; reports are not.
var publicOperations = map[string]bool{
	operationListTools: true,
}

// publicServicePrefixes cover health probes and grpcurl discovery.
var publicServicePrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isPublicOperation(op string) bool {
	if publicOperations[op] {
		return true
	}
	for _, p := range publicServicePrefixes {
		if strings.HasPrefix(op, p) {
			return true
		}
	}
	return false
}

// verifyAPIKey compares key with secret and logs every rejection with the
// operation it targeted.
func verifyAPIKey(op, key, secret string) error {
	var reason string
	switch {
	case key == "":
		reason = "missing API key"
	case subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1:
		reason = "invalid API key"
	default:
		return nil
	}
	logger.Server.Warn().Str("operation", op).Str("reason", reason).Msg("request rejected")
	return status.Error(codes.Unauthenticated, reason)
}

func metadataKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get("x-api-key"); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// APIKeyInterceptor requires the x-api-key metadata entry on every
// non-public method. An empty secret disables authentication.
func APIKeyInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if secret != "" && !isPublicOperation(info.FullMethod) {
			if err := verifyAPIKey(info.FullMethod, metadataKey(ctx), secret); err != nil {
				return nil, err
			}
		}
		return handler(ctx, req)
	}
}

// APIKeyStreamInterceptor is the streaming counterpart of APIKeyInterceptor.
func APIKeyStreamInterceptor(secret string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if secret != "" && !isPublicOperation(info.FullMethod) {
			if err := verifyAPIKey(info.FullMethod, metadataKey(ss.Context()), secret); err != nil {
				return err
			}
		}
		return handler(srv, ss)
	}
}

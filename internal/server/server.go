// Package server exposes the tool registry over MCP, an HTTP text API, and
// gRPC.
package server

import (
	"context"
	"fmt"
	"net"

	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	swaggerUI "github.com/tx7do/kratos-swagger-ui"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/go-tangra/go-tangra-sysinfo/internal/config"
	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
	"github.com/go-tangra/go-tangra-sysinfo/internal/tools"
)

// NewHTTPServer builds the HTTP API with the API-key middleware, tool
// routes, and the optional Swagger UI.
func NewHTTPServer(cfg *config.Config, reg *tools.Registry, openAPIData []byte) *kratoshttp.Server {
	httpSrv := kratoshttp.NewServer(
		kratoshttp.Address(cfg.HTTPListen),
		kratoshttp.Middleware(APIKeyMiddleware(cfg.APISecret)),
	)
	RegisterHTTPServer(httpSrv, NewHandler(reg))

	if cfg.EnableSwagger && len(openAPIData) > 0 {
		swaggerUI.RegisterSwaggerUIServerWithOption(
			httpSrv,
			swaggerUI.WithTitle("System Information"),
			swaggerUI.WithMemoryData(openAPIData, "yaml"),
		)
		logger.Server.Info().Str("url", "http://"+cfg.HTTPListen+"/docs/").Msg("Swagger UI available")
	}
	return httpSrv
}

// NewGRPCServer builds the gRPC server carrying the tools service, the
// health service and reflection.
func NewGRPCServer(cfg *config.Config, reg *tools.Registry) (*grpc.Server, *health.Server) {
	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(APIKeyInterceptor(cfg.APISecret)),
		grpc.ChainStreamInterceptor(APIKeyStreamInterceptor(cfg.APISecret)),
	)
	RegisterToolsServer(grpcSrv, grpcTools{h: NewHandler(reg)})
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	reflection.Register(grpcSrv)
	return grpcSrv, hs
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, reg *tools.Registry, openAPIData []byte) error {
	grpcSrv, hs := NewGRPCServer(cfg, reg)

	lis, err := net.Listen("tcp", cfg.GRPCListen)
	if err != nil {
		return fmt.Errorf("listen gRPC on %s: %w", cfg.GRPCListen, err)
	}

	httpSrv := NewHTTPServer(cfg, reg, openAPIData)

	go func() {
		<-ctx.Done()
		logger.Server.Info().Msg("shutting down")
		hs.Shutdown()
		_ = httpSrv.Stop(context.Background())
		grpcSrv.GracefulStop()
	}()

	go func() {
		if err := httpSrv.Start(ctx); err != nil {
			logger.Server.Error().Err(err).Msg("HTTP server error")
		}
	}()

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Server.Info().
		Str("grpc", cfg.GRPCListen).
		Str("http", cfg.HTTPListen).
		Int("tools", len(reg.Tools())).
		Msg("sysinfo API listening")

	return grpcSrv.Serve(lis)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-tangra/go-tangra-sysinfo/internal/logger"
	"github.com/go-tangra/go-tangra-sysinfo/internal/tools"
)

// ServerName is the name announced to MCP clients.
const ServerName = "system-information"

// NewMCPServer registers every tool of reg as a zero-argument MCP tool.
func NewMCPServer(reg *tools.Registry, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(ServerName, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	for _, t := range reg.Tools() {
		s.AddTool(mcp.NewTool(t.Name,
			mcp.WithDescription(t.Description),
			mcp.WithTitleAnnotation(t.Title),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		), toolHandler(reg, t.Name))
	}
	return s
}

func toolHandler(reg *tools.Registry, name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := reg.Run(ctx, name)
		if err != nil {
			logger.Server.Error().Err(err).Str("tool", name).Msg("tool failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// ServeMCPStdio serves MCP over the given streams until ctx is cancelled or
// the input closes.
func ServeMCPStdio(ctx context.Context, s *mcpserver.MCPServer, in io.Reader, out io.Writer) error {
	logger.Server.Info().Msg("MCP server listening on stdio")
	if err := mcpserver.NewStdioServer(s).Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve MCP stdio: %w", err)
	}
	return nil
}

// ServeMCPHTTP serves MCP over streamable HTTP on addr until ctx is
// cancelled.
func ServeMCPHTTP(ctx context.Context, s *mcpserver.MCPServer, addr string) error {
	httpSrv := mcpserver.NewStreamableHTTPServer(s)

	go func() {
		<-ctx.Done()
		logger.Server.Info().Msg("shutting down MCP HTTP server")
		_ = httpSrv.Shutdown(context.Background())
	}()

	logger.Server.Info().Str("addr", addr).Msg("MCP streamable HTTP listening on /mcp")
	if err := httpSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve MCP http on %s: %w", addr, err)
	}
	return nil
}

package server

import (
	"context"
	"errors"

	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/go-tangra/go-tangra-sysinfo/internal/tools"
)

const (
	operationListTools = "/sysinfo.v1.Tools/List"
	operationRunTool   = "/sysinfo.v1.Tools/Run"
)

// ToolInfo is one entry of the tool list.
type ToolInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListToolsReply is the body of GET /v1/tools.
type ListToolsReply struct {
	Tools []ToolInfo `json:"tools"`
}

type runToolRequest struct {
	Name string `json:"name"`
}

// Handler serves the HTTP text API on top of the tool registry.
type Handler struct {
	reg *tools.Registry
}

// NewHandler returns a handler for reg.
func NewHandler(reg *tools.Registry) *Handler {
	return &Handler{reg: reg}
}

// ListTools returns the registered tools.
func (h *Handler) ListTools(context.Context) (*ListToolsReply, error) {
	list := h.reg.Tools()
	reply := &ListToolsReply{Tools: make([]ToolInfo, len(list))}
	for i, t := range list {
		reply.Tools[i] = ToolInfo{Name: t.Name, Title: t.Title, Description: t.Description}
	}
	return reply, nil
}

// RunTool renders the named tool's report.
func (h *Handler) RunTool(ctx context.Context, name string) (string, error) {
	text, err := h.reg.Run(ctx, name)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			return "", status.Errorf(codes.NotFound, "tool %q not found", name)
		}
		return "", status.Errorf(codes.Internal, "run tool: %v", err)
	}
	return text, nil
}

// RegisterHTTPServer mounts the tool routes on srv. Requests pass through
// the server's middleware chain.
func RegisterHTTPServer(srv *kratoshttp.Server, h *Handler) {
	r := srv.Route("/")
	r.GET("/v1/tools", listToolsHTTPHandler(h))
	r.GET("/v1/tools/{name}", runToolHTTPHandler(h))
}

func listToolsHTTPHandler(h *Handler) func(ctx kratoshttp.Context) error {
	return func(ctx kratoshttp.Context) error {
		kratoshttp.SetOperation(ctx, operationListTools)
		handler := ctx.Middleware(func(ctx context.Context, _ any) (any, error) {
			return h.ListTools(ctx)
		})
		out, err := handler(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func runToolHTTPHandler(h *Handler) func(ctx kratoshttp.Context) error {
	return func(ctx kratoshttp.Context) error {
		in := runToolRequest{Name: ctx.Vars().Get("name")}
		kratoshttp.SetOperation(ctx, operationRunTool)
		handler := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return h.RunTool(ctx, req.(*runToolRequest).Name)
		})
		out, err := handler(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.String(200, out.(string))
	}
}

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ToolsServer is the gRPC tools service. List returns one struct per tool
// with name, title and description; Run takes a tool name and returns the
// rendered report.
type ToolsServer interface {
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Run(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// RegisterToolsServer registers srv on s under sysinfo.v1.Tools.
func RegisterToolsServer(s grpc.ServiceRegistrar, srv ToolsServer) {
	s.RegisterService(&toolsServiceDesc, srv)
}

var toolsServiceDesc = grpc.ServiceDesc{
	ServiceName: "sysinfo.v1.Tools",
	HandlerType: (*ToolsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: toolsListHandler},
		{MethodName: "Run", Handler: toolsRunHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func toolsListHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolsServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: operationListTools}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolsServer).List(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func toolsRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolsServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: operationRunTool}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolsServer).Run(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ToolsClient calls the gRPC tools service.
type ToolsClient struct {
	cc grpc.ClientConnInterface
}

// NewToolsClient returns a client using cc.
func NewToolsClient(cc grpc.ClientConnInterface) *ToolsClient {
	return &ToolsClient{cc: cc}
}

// List returns the tool catalog.
func (c *ToolsClient) List(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, operationListTools, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Run renders the named tool's report.
func (c *ToolsClient) Run(ctx context.Context, name string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, operationRunTool, wrapperspb.String(name), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// grpcTools serves ToolsServer on top of the HTTP handler, so both
// transports share error mapping.
type grpcTools struct {
	h *Handler
}

func (g grpcTools) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	reply, err := g.h.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(reply.Tools))
	for i, t := range reply.Tools {
		items[i] = map[string]any{
			"name":        t.Name,
			"title":       t.Title,
			"description": t.Description,
		}
	}
	return structpb.NewList(items)
}

func (g grpcTools) Run(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	text, err := g.h.RunTool(ctx, in.GetValue())
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(text), nil
}

package server

import (
	"context"

	"github.com/racerl/racecore/pkg/core"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "racecore.Environment"

// ResetRequest starts a new episode.
type ResetRequest struct{}

// StepRequest runs one tick. When Action is set it is applied as is;
// otherwise the server's policy acts on Input.
type StepRequest struct {
	Action    *core.Action    `json:"action,omitempty"`
	Input     core.InputState `json:"input"`
	DeltaTime float64         `json:"deltaTime,omitempty"`
}

// PushEventReply reports whether a world event was queued.
type PushEventReply struct {
	Accepted bool `json:"accepted"`
}

// EnvironmentServer is the server API of racecore.Environment.
type EnvironmentServer interface {
	Reset(context.Context, *ResetRequest) (*core.StepResult, error)
	Step(context.Context, *StepRequest) (*core.StepResult, error)
	PushEvent(context.Context, *core.WorldEvent) (*PushEventReply, error)
}

// RegisterEnvironmentServer registers srv on s.
func RegisterEnvironmentServer(s grpc.ServiceRegistrar, srv EnvironmentServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reset", Handler: resetHandler},
		{MethodName: "Step", Handler: stepHandler},
		{MethodName: "PushEvent", Handler: pushEventHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "racecore/environment",
}

func resetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ResetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvironmentServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Reset"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnvironmentServer).Reset(ctx, req.(*ResetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func stepHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StepRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvironmentServer).Step(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Step"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnvironmentServer).Step(ctx, req.(*StepRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pushEventHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(core.WorldEvent)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvironmentServer).PushEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/PushEvent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnvironmentServer).PushEvent(ctx, req.(*core.WorldEvent))
	}
	return interceptor(ctx, in, info, handler)
}

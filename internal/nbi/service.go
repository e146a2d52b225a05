package nbi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "spacenet.v1.SimulationService"

const (
	SimulationService_LoadScenario_FullMethodName  = "/" + ServiceName + "/LoadScenario"
	SimulationService_Simulate_FullMethodName      = "/" + ServiceName + "/Simulate"
	SimulationService_GetResult_FullMethodName     = "/" + ServiceName + "/GetResult"
	SimulationService_Aggregate_FullMethodName     = "/" + ServiceName + "/Aggregate"
	SimulationService_AutoRepair_FullMethodName    = "/" + ServiceName + "/AutoRepair"
	SimulationService_ClearRepairs_FullMethodName  = "/" + ServiceName + "/ClearRepairs"
	SimulationService_GetStatus_FullMethodName     = "/" + ServiceName + "/GetStatus"
	SimulationService_ClearScenario_FullMethodName = "/" + ServiceName + "/ClearScenario"
)

// SimulationServer is the server API for the simulation service. Payloads
// are google.protobuf.Struct documents using the JSON field names of the
// request and response types in this package.
type SimulationServer interface {
	LoadScenario(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Aggregate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AutoRepair(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearRepairs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ClearScenario(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterSimulationServer registers srv on s.
func RegisterSimulationServer(s grpc.ServiceRegistrar, srv SimulationServer) {
	s.RegisterService(&SimulationService_ServiceDesc, srv)
}

func unaryHandler[Req any](
	fullMethod string,
	newReq func() *Req,
	call func(SimulationServer, context.Context, *Req) (any, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimulationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SimulationServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newStruct() *structpb.Struct { return &structpb.Struct{} }
func newEmpty() *emptypb.Empty    { return &emptypb.Empty{} }

// SimulationService_ServiceDesc is the grpc.ServiceDesc for the simulation
// service.
var SimulationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "LoadScenario",
			Handler: unaryHandler(SimulationService_LoadScenario_FullMethodName, newStruct,
				func(s SimulationServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.LoadScenario(ctx, in)
				}),
		},
		{
			MethodName: "Simulate",
			Handler: unaryHandler(SimulationService_Simulate_FullMethodName, newStruct,
				func(s SimulationServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.Simulate(ctx, in)
				}),
		},
		{
			MethodName: "GetResult",
			Handler: unaryHandler(SimulationService_GetResult_FullMethodName, newStruct,
				func(s SimulationServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.GetResult(ctx, in)
				}),
		},
		{
			MethodName: "Aggregate",
			Handler: unaryHandler(SimulationService_Aggregate_FullMethodName, newStruct,
				func(s SimulationServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.Aggregate(ctx, in)
				}),
		},
		{
			MethodName: "AutoRepair",
			Handler: unaryHandler(SimulationService_AutoRepair_FullMethodName, newStruct,
				func(s SimulationServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.AutoRepair(ctx, in)
				}),
		},
		{
			MethodName: "ClearRepairs",
			Handler: unaryHandler(SimulationService_ClearRepairs_FullMethodName, newStruct,
				func(s SimulationServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.ClearRepairs(ctx, in)
				}),
		},
		{
			MethodName: "GetStatus",
			Handler: unaryHandler(SimulationService_GetStatus_FullMethodName, newEmpty,
				func(s SimulationServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.GetStatus(ctx, in)
				}),
		},
		{
			MethodName: "ClearScenario",
			Handler: unaryHandler(SimulationService_ClearScenario_FullMethodName, newEmpty,
				func(s SimulationServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.ClearScenario(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spacenet/v1/simulation.proto",
}

// SimulationClient is the client API for the simulation service.
type SimulationClient struct {
	cc grpc.ClientConnInterface
}

// NewSimulationClient wraps an established connection.
func NewSimulationClient(cc grpc.ClientConnInterface) *SimulationClient {
	return &SimulationClient{cc: cc}
}

func (c *SimulationClient) invoke(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadScenario sends an inline scenario document.
func (c *SimulationClient) LoadScenario(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_LoadScenario_FullMethodName, in, opts...)
}

// Simulate starts a run of the loaded scenario.
func (c *SimulationClient) Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_Simulate_FullMethodName, in, opts...)
}

// GetResult fetches a run's result.
func (c *SimulationClient) GetResult(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_GetResult_FullMethodName, in, opts...)
}

// Aggregate fetches a run's demands aggregated onto the supply network.
func (c *SimulationClient) Aggregate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_Aggregate_FullMethodName, in, opts...)
}

// AutoRepair spends a crew-hour budget on one mission's repairs.
func (c *SimulationClient) AutoRepair(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_AutoRepair_FullMethodName, in, opts...)
}

// ClearRepairs drops one mission's repaired items.
func (c *SimulationClient) ClearRepairs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_ClearRepairs_FullMethodName, in, opts...)
}

// GetStatus reports the loaded scenario and run history.
func (c *SimulationClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SimulationService_GetStatus_FullMethodName, &emptypb.Empty{}, opts...)
}

// ClearScenario drops the loaded scenario and catalog.
func (c *SimulationClient) ClearScenario(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, SimulationService_ClearScenario_FullMethodName, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

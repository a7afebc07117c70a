package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"drone-dispatch/internal/transport"
)

const (
	authServiceName       = "dispatch.AuthService"
	orderServiceName      = "dispatch.OrderService"
	adminServiceName      = "dispatch.AdminService"
	simulationServiceName = "dispatch.SimulationService"

	issueTokenMethod = "/" + authServiceName + "/IssueToken"
)

type AuthService interface {
	IssueToken(context.Context, *TokenRequest) (*TokenResponse, error)
}

type OrderService interface {
	SubmitOrder(context.Context, *SubmitOrderRequest) (*transport.OrderResponse, error)
	GetOrder(context.Context, *OrderIDRequest) (*transport.OrderViewResponse, error)
}

type AdminService interface {
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	ListDrones(context.Context, *Empty) (*ListDronesResponse, error)
	RegisterDrone(context.Context, *RegisterDroneRequest) (*transport.DroneResponse, error)
	ResetCycle(context.Context, *Empty) (*Empty, error)
	PlanCycle(context.Context, *Empty) (*transport.PlanResponse, error)
	RunBatch(context.Context, *Empty) (*transport.ReportResponse, error)
}

type SimulationService interface {
	Watch(*WatchRequest, grpc.ServerStream) error
}

// unary builds a method descriptor that decodes Req and calls fn on the *Server.
func unary[Req any, Resp any](service, method string, fn func(*Server, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(*Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(*Server), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authServiceName,
	HandlerType: (*AuthService)(nil),
	Methods: []grpc.MethodDesc{
		unary(authServiceName, "IssueToken", (*Server).IssueToken),
	},
	Metadata: "dispatch.proto",
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderService)(nil),
	Methods: []grpc.MethodDesc{
		unary(orderServiceName, "SubmitOrder", (*Server).SubmitOrder),
		unary(orderServiceName, "GetOrder", (*Server).GetOrder),
	},
	Metadata: "dispatch.proto",
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminService)(nil),
	Methods: []grpc.MethodDesc{
		unary(adminServiceName, "ListOrders", (*Server).ListOrders),
		unary(adminServiceName, "ListDrones", (*Server).ListDrones),
		unary(adminServiceName, "RegisterDrone", (*Server).RegisterDrone),
		unary(adminServiceName, "ResetCycle", (*Server).ResetCycle),
		unary(adminServiceName, "PlanCycle", (*Server).PlanCycle),
		unary(adminServiceName, "RunBatch", (*Server).RunBatch),
	},
	Metadata: "dispatch.proto",
}

var simulationServiceDesc = grpc.ServiceDesc{
	ServiceName: simulationServiceName,
	HandlerType: (*SimulationService)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "dispatch.proto",
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(*Server).Watch(in, stream)
}

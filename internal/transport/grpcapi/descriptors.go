package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"skybite/internal/transport"
)

type Empty struct{}

type ListOrdersResponse struct {
	Orders []transport.OrderViewResponse `json:"orders"`
}

type ListDronesResponse struct {
	Drones []transport.DroneResponse `json:"drones"`
}

type AuthService interface {
	IssueToken(context.Context, *TokenRequest) (*TokenResponse, error)
}

// FleetService is the admin control plane over the drone fleet.
type FleetService interface {
	ListDrones(context.Context, *Empty) (*ListDronesResponse, error)
	RegisterDrone(context.Context, *RegisterDroneRequest) (*transport.DroneResponse, error)
	MarkMaintenance(context.Context, *DroneIDRequest) (*transport.DroneResponse, error)
	MarkAvailable(context.Context, *DroneIDRequest) (*transport.DroneResponse, error)
	StopSimulation(context.Context, *DroneIDRequest) (*transport.DroneResponse, error)
}

// DispatchService is the admin control plane over deliveries.
type DispatchService interface {
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	AssignOrder(context.Context, *AssignOrderRequest) (*transport.OrderResponse, error)
	ReassignOrder(context.Context, *ReassignOrderRequest) (*transport.OrderResponse, error)
	Dispatch(context.Context, *DispatchRequest) (*transport.OrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*transport.OrderResponse, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: "delivery.AuthService",
	HandlerType: (*AuthService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IssueToken",
			Handler:    issueTokenHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "drone_delivery.proto",
}

var fleetServiceDesc = grpc.ServiceDesc{
	ServiceName: "delivery.FleetService",
	HandlerType: (*FleetService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListDrones", Handler: listDronesHandler},
		{MethodName: "RegisterDrone", Handler: registerDroneHandler},
		{MethodName: "MarkMaintenance", Handler: markMaintenanceHandler},
		{MethodName: "MarkAvailable", Handler: markAvailableHandler},
		{MethodName: "StopSimulation", Handler: stopSimulationHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "drone_delivery.proto",
}

var dispatchServiceDesc = grpc.ServiceDesc{
	ServiceName: "delivery.DispatchService",
	HandlerType: (*DispatchService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListOrders", Handler: listOrdersHandler},
		{MethodName: "AssignOrder", Handler: assignOrderHandler},
		{MethodName: "ReassignOrder", Handler: reassignOrderHandler},
		{MethodName: "Dispatch", Handler: dispatchHandler},
		{MethodName: "CancelOrder", Handler: cancelOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "drone_delivery.proto",
}

func issueTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).IssueToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.AuthService/IssueToken"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).IssueToken(ctx, req.(*TokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listDronesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListDrones(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.FleetService/ListDrones"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListDrones(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func registerDroneHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterDroneRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).RegisterDrone(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.FleetService/RegisterDrone"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).RegisterDrone(ctx, req.(*RegisterDroneRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func markMaintenanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DroneIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).MarkMaintenance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.FleetService/MarkMaintenance"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).MarkMaintenance(ctx, req.(*DroneIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func markAvailableHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DroneIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).MarkAvailable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.FleetService/MarkAvailable"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).MarkAvailable(ctx, req.(*DroneIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func stopSimulationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DroneIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).StopSimulation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.FleetService/StopSimulation"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).StopSimulation(ctx, req.(*DroneIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listOrdersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.DispatchService/ListOrders"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListOrders(ctx, req.(*ListOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func assignOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AssignOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).AssignOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.DispatchService/AssignOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).AssignOrder(ctx, req.(*AssignOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reassignOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReassignOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ReassignOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.DispatchService/ReassignOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ReassignOrder(ctx, req.(*ReassignOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DispatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.DispatchService/Dispatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Dispatch(ctx, req.(*DispatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).CancelOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/delivery.DispatchService/CancelOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).CancelOrder(ctx, req.(*CancelOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"skybite/internal/auth"
	"skybite/internal/delivery"
	"skybite/internal/domain"
	"skybite/internal/transport"
)

type Server struct {
	svc  *delivery.Service
	orch *delivery.Orchestrator
	auth *auth.Authenticator
}

func NewServer(svc *delivery.Service, orch *delivery.Orchestrator, authenticator *auth.Authenticator) *grpc.Server {
	server := &Server{svc: svc, orch: orch, auth: authenticator}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.authInterceptor()))

	grpcServer.RegisterService(&authServiceDesc, server)
	grpcServer.RegisterService(&fleetServiceDesc, server)
	grpcServer.RegisterService(&dispatchServiceDesc, server)

	return grpcServer
}

func (s *Server) authInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == "/delivery.AuthService/IssueToken" {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		authHeader := ""
		if values := md.Get("authorization"); len(values) > 0 {
			authHeader = values[0]
		}
		token := auth.ExtractBearerToken(authHeader)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		claims, err := s.auth.ParseToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		ctx = auth.ContextWithClaims(ctx, claims)
		return handler(ctx, req)
	}
}

func (s *Server) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.Name == "" || !domain.ValidateRole(req.Role) {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		return nil, status.Error(codes.Internal, "token error")
	}
	return &TokenResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}, nil
}

func (s *Server) ListDrones(ctx context.Context, _ *Empty) (*ListDronesResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drones, err := s.svc.AdminListDrones(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &ListDronesResponse{Drones: make([]transport.DroneResponse, 0, len(drones))}
	for _, drone := range drones {
		resp.Drones = append(resp.Drones, transport.FromDrone(drone))
	}
	return resp, nil
}

func (s *Server) RegisterDrone(ctx context.Context, req *RegisterDroneRequest) (*transport.DroneResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drone, err := s.svc.RegisterDrone(ctx, req.ID, toDomainLocation(req.HomeLocation), req.SpeedKmh, req.BatteryLevel)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDrone(drone)
	return &resp, nil
}

func (s *Server) MarkMaintenance(ctx context.Context, req *DroneIDRequest) (*transport.DroneResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drone, err := s.svc.MarkDroneMaintenance(ctx, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDrone(drone)
	return &resp, nil
}

func (s *Server) MarkAvailable(ctx context.Context, req *DroneIDRequest) (*transport.DroneResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drone, err := s.svc.MarkDroneAvailable(ctx, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDrone(drone)
	return &resp, nil
}

func (s *Server) StopSimulation(ctx context.Context, req *DroneIDRequest) (*transport.DroneResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drone, err := s.orch.StopSimulation(ctx, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDrone(drone)
	return &resp, nil
}

func (s *Server) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	var st *domain.OrderStatus
	if req.Status != "" {
		v := domain.OrderStatus(req.Status)
		st = &v
	}
	views, err := s.svc.AdminListOrders(ctx, delivery.OrderFilter{Status: st, Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &ListOrdersResponse{Orders: make([]transport.OrderViewResponse, 0, len(views))}
	for _, view := range views {
		resp.Orders = append(resp.Orders, transport.FromOrderView(view))
	}
	return resp, nil
}

func (s *Server) AssignOrder(ctx context.Context, req *AssignOrderRequest) (*transport.OrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	var order *domain.Order
	var err error
	if req.DroneID == "" {
		order, err = s.svc.AutoAssign(ctx, req.OrderID)
	} else {
		order, err = s.svc.ManualAssign(ctx, req.OrderID, req.DroneID)
	}
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) ReassignOrder(ctx context.Context, req *ReassignOrderRequest) (*transport.OrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.svc.Reassign(ctx, req.OrderID, req.FromDroneID, req.ToDroneID, req.Reason)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) Dispatch(ctx context.Context, req *DispatchRequest) (*transport.OrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.orch.StartSimulation(ctx, req.OrderID, req.DroneID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*transport.OrderResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.orch.CancelOrder(ctx, req.OrderID, req.Reason)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

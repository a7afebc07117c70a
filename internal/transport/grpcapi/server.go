package grpcapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"drone-dispatch/internal/auth"
	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/service"
	"drone-dispatch/internal/simulation"
	"drone-dispatch/internal/transport"
)

type Options struct {
	Logger       zerolog.Logger
	StepInterval time.Duration
}

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
	log  zerolog.Logger
	opts Options
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator, opts Options) *grpc.Server {
	server := &Server{svc: svc, auth: authenticator, log: opts.Logger, opts: opts}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.authInterceptor()),
		grpc.StreamInterceptor(server.streamAuthInterceptor()),
	)

	grpcServer.RegisterService(&authServiceDesc, server)
	grpcServer.RegisterService(&orderServiceDesc, server)
	grpcServer.RegisterService(&adminServiceDesc, server)
	grpcServer.RegisterService(&simulationServiceDesc, server)

	return grpcServer
}

func (s *Server) authenticate(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	authHeader := ""
	if values := md.Get("authorization"); len(values) > 0 {
		authHeader = values[0]
	}
	claims, err := s.auth.Authorize(authHeader)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return auth.ContextWithClaims(ctx, claims), nil
}

func (s *Server) authInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == issueTokenMethod {
			return handler(ctx, req)
		}
		ctx, err := s.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

func (s *Server) streamAuthInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := s.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

func (s *Server) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &TokenResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}, nil
}

func (s *Server) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*transport.OrderResponse, error) {
	claims, err := requireRole(ctx, domain.RoleEndUser, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, mapServiceError(err)
	}
	order, err := s.svc.SubmitOrder(ctx, claims.Subject, domain.Position{X: req.X, Y: req.Y}, req.WeightKg, priority)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrder(order)
	return &resp, nil
}

func (s *Server) GetOrder(ctx context.Context, req *OrderIDRequest) (*transport.OrderViewResponse, error) {
	claims, err := requireRole(ctx, domain.RoleEndUser, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	view, err := s.svc.GetOrder(ctx, claims.Subject, claims.Role, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromOrderView(view)
	return &resp, nil
}

func (s *Server) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	orders, err := s.svc.ListOrders(ctx, service.OrderFilter{
		Status: transport.ParseOrderStatus(req.Status),
		UserID: req.UserID,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &ListOrdersResponse{Orders: transport.FromOrders(orders)}, nil
}

func (s *Server) ListDrones(ctx context.Context, _ *Empty) (*ListDronesResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drones, err := s.svc.ListDrones(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &ListDronesResponse{Drones: transport.FromDrones(drones)}, nil
}

func (s *Server) RegisterDrone(ctx context.Context, req *RegisterDroneRequest) (*transport.DroneResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	drone, err := s.svc.RegisterDrone(ctx, domain.DroneSpec{CapacityKg: req.CapacityKg, RangeKm: req.RangeKm})
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDrone(drone)
	return &resp, nil
}

func (s *Server) ResetCycle(ctx context.Context, _ *Empty) (*Empty, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.svc.ResetCycle(ctx); err != nil {
		return nil, mapServiceError(err)
	}
	return &Empty{}, nil
}

func (s *Server) PlanCycle(ctx context.Context, _ *Empty) (*transport.PlanResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	plan, err := s.svc.PlanCycle(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromPlan(plan)
	return &resp, nil
}

func (s *Server) RunBatch(ctx context.Context, _ *Empty) (*transport.ReportResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	report, err := s.svc.RunBatch(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromReport(report)
	return &resp, nil
}

// Watch runs the stepped simulation and streams a snapshot per step followed
// by the summary. A client hanging up cancels the run.
func (s *Server) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	interval := s.opts.StepInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := simulation.RendererFunc(func(snap simulation.Snapshot) {
		if ctx.Err() != nil {
			return
		}
		if err := stream.SendMsg(&WatchEvent{Snapshot: &snap}); err != nil {
			s.log.Debug().Err(err).Int("step", snap.Step).Msg("watch client gone")
			cancel()
		}
	})
	summary, err := s.svc.RunStepped(ctx, renderer, interval)
	if err != nil {
		return mapServiceError(err)
	}
	resp := transport.FromSummary(summary, false)
	return stream.SendMsg(&WatchEvent{Summary: &resp})
}

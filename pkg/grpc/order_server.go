package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/resolver"
	"github.com/example/articleshop/pkg/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

const serviceName = "articleshop.OrderService"

// OrderServiceServer is the order API for internal callers.
type OrderServiceServer interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
	UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*OrderResponse, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateOrder",
			Handler: unary("CreateOrder", func(s OrderServiceServer, ctx context.Context, req *CreateOrderRequest) (interface{}, error) {
				return s.CreateOrder(ctx, req)
			}),
		},
		{
			MethodName: "GetOrder",
			Handler: unary("GetOrder", func(s OrderServiceServer, ctx context.Context, req *GetOrderRequest) (interface{}, error) {
				return s.GetOrder(ctx, req)
			}),
		},
		{
			MethodName: "UpdateOrder",
			Handler: unary("UpdateOrder", func(s OrderServiceServer, ctx context.Context, req *UpdateOrderRequest) (interface{}, error) {
				return s.UpdateOrder(ctx, req)
			}),
		},
		{
			MethodName: "ListOrders",
			Handler: unary("ListOrders", func(s OrderServiceServer, ctx context.Context, req *ListOrdersRequest) (interface{}, error) {
				return s.ListOrders(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "articleshop/order",
}

type methodHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func unary[Req any](method string, call func(OrderServiceServer, context.Context, *Req) (interface{}, error)) methodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		})
	}
}

type OrderServer struct {
	orders *service.OrderService
	config *config.Config
	logger *zap.Logger
	server *grpc.Server
	health *health.Server
}

func NewOrderServer(cfg *config.Config, orders *service.OrderService, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		orders: orders,
		config: cfg,
		logger: logger,
		health: health.NewServer(),
	}

	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	s.server.RegisterService(&orderServiceDesc, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *OrderServer) Start() error {
	addr := s.config.Server.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Order service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks the service as not serving and waits for in-flight calls.
func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *OrderServer) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	order, err := s.orders.CreateOrder(ctx, req.UserID, req.Items)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateOrderResponse{Order: order}, nil
}

func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	order, err := s.orders.GetOrder(ctx, req.ID, s.authority(req.Authority))
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderResponse{Order: order}, nil
}

func (s *OrderServer) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*OrderResponse, error) {
	patch := models.OrderPatch{Status: req.Status, Items: req.Items}
	order, err := s.orders.UpdateOrder(ctx, req.ID, patch, s.authority(req.Authority))
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderResponse{Order: order}, nil
}

func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	authority := s.authority(req.Authority)

	var (
		orders []*resolver.Order
		err    error
	)
	if req.UserID != "" {
		orders, err = s.orders.ListOrdersForUser(ctx, req.UserID, authority)
	} else {
		orders, err = s.orders.ListAllOrders(ctx, authority)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListOrdersResponse{Orders: orders}, nil
}

func (s *OrderServer) authority(requested string) string {
	if requested != "" {
		return requested
	}
	return s.config.Server.PublicURL
}

func toStatus(err error) error {
	msg := apperror.Public(err)
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, apperror.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, apperror.ErrConflict):
		return status.Error(codes.AlreadyExists, msg)
	case errors.Is(err, apperror.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, msg)
	case errors.Is(err, apperror.ErrUpstream):
		return status.Error(codes.Unavailable, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if status.Code(err) == codes.Internal {
			logger.Error("gRPC call failed", fields...)
		} else {
			logger.Info("gRPC call", fields...)
		}
		return resp, err
	}
}

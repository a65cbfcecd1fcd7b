package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// OrderClient calls the order service over a single connection.
type OrderClient struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// Dial connects to the order service. When disc is set the address registered under name is
// preferred; fallback is used when discovery fails or finds nothing.
func Dial(ctx context.Context, name, fallback string, disc *discovery.ServiceDiscovery, logger *zap.Logger, opts ...grpc.DialOption) (*OrderClient, error) {
	target := fallback

	if disc != nil {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		instances, err := disc.Discover(dctx, name)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr
			logger.Info("Discovered order service", zap.String("address", target))
		} else {
			logger.Info("Using default address for order service", zap.String("address", target))
		}
	}

	logger.Info("Connecting to order service", zap.String("target", target))
	return NewOrderClient(target, logger, opts...)
}

func NewOrderClient(target string, logger *zap.Logger, opts ...grpc.DialOption) (*OrderClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to order service: %w", err)
	}
	return &OrderClient{conn: conn, logger: logger}, nil
}

func (c *OrderClient) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	out := new(CreateOrderResponse)
	return out, c.invoke(ctx, "CreateOrder", req, out)
}

func (c *OrderClient) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	out := new(OrderResponse)
	return out, c.invoke(ctx, "GetOrder", req, out)
}

func (c *OrderClient) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*OrderResponse, error) {
	out := new(OrderResponse)
	return out, c.invoke(ctx, "UpdateOrder", req, out)
}

func (c *OrderClient) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	return out, c.invoke(ctx, "ListOrders", req, out)
}

func (c *OrderClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *OrderClient) Close() error {
	return c.conn.Close()
}

// fromStatus maps a status error back onto the apperror kinds so callers can use errors.Is.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var kind error
	switch st.Code() {
	case codes.InvalidArgument:
		kind = apperror.ErrValidation
	case codes.NotFound:
		kind = apperror.ErrNotFound
	case codes.AlreadyExists:
		kind = apperror.ErrConflict
	case codes.Unauthenticated:
		kind = apperror.ErrUnauthorized
	case codes.Unavailable:
		kind = apperror.ErrUpstream
	default:
		return err
	}
	return errors.Join(kind, err)
}

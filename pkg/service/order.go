package service

import (
	"context"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/repository"
	"github.com/example/articleshop/pkg/resolver"
	"go.uber.org/zap"
)

// Auditor receives order lifecycle events. Recording must not block the caller.
type Auditor interface {
	Record(action, entityID string, data map[string]interface{})
}

type nopAuditor struct{}

func (nopAuditor) Record(string, string, map[string]interface{}) {}

// OrderService owns order creation and updates and serves resolved orders.
//
// Reads and writes are not wrapped in a cross-record transaction. An update touches one
// order record, and concurrent updates to the same order are last-write-wins per field.
type OrderService struct {
	orders   repository.OrderStore
	users    repository.UserStore
	resolver *resolver.Resolver
	audit    Auditor
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(orders repository.OrderStore, users repository.UserStore, res *resolver.Resolver, audit Auditor, logger *zap.Logger) *OrderService {
	if audit == nil {
		audit = nopAuditor{}
	}
	return &OrderService{
		orders:   orders,
		users:    users,
		resolver: res,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder stores a new pending order. Articles are not checked for existence.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, items []models.ItemInput) (*models.Order, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperror.ValidationFailed("items", "Missing or invalid items")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:        models.NewID(),
		UserID:    userID,
		Items:     models.ToItems(items),
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.audit.Record("create_order", order.ID, map[string]interface{}{
		"user_id": userID,
		"items":   len(order.Items),
	})
	return order, nil
}

// UpdateOrder applies the fields present in patch. A provided item list replaces the
// previous one entirely and may be empty.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, patch models.OrderPatch, authority string) (*resolver.Order, error) {
	if err := requireID("orderId", id); err != nil {
		return nil, err
	}

	var update models.OrderUpdate
	// An empty status counts as absent and keeps the stored one.
	if patch.Status != nil && *patch.Status != "" {
		update.Status = patch.Status
	}
	if patch.Items != nil {
		if err := validateItems(*patch.Items); err != nil {
			return nil, err
		}
		items := models.ToItems(*patch.Items)
		update.Items = &items
	}

	order, err := s.orders.UpdateOrder(ctx, id, update)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{}
	if update.Status != nil {
		data["status"] = *update.Status
	}
	if update.Items != nil {
		data["items"] = len(*update.Items)
	}
	s.audit.Record("update_order", id, data)

	return s.resolver.Resolve(ctx, order, authority)
}

func (s *OrderService) GetOrder(ctx context.Context, id, authority string) (*resolver.Order, error) {
	if err := requireID("orderId", id); err != nil {
		return nil, err
	}
	order, err := s.orders.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, order, authority)
}

// ListOrdersForUser returns the user's orders in store order.
func (s *OrderService) ListOrdersForUser(ctx context.Context, userID, authority string) ([]*resolver.Order, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.OrderFilter{UserID: userID}, authority)
}

// ListAllOrders returns every order. It performs no authorization.
func (s *OrderService) ListAllOrders(ctx context.Context, authority string) ([]*resolver.Order, error) {
	return s.list(ctx, repository.OrderFilter{}, authority)
}

func (s *OrderService) list(ctx context.Context, filter repository.OrderFilter, authority string) ([]*resolver.Order, error) {
	orders, err := s.orders.FindOrders(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.String("user_id", filter.UserID), zap.Error(err))
		return nil, err
	}
	return s.resolver.ResolveAll(ctx, orders, authority)
}

// DeleteOrder exists for verification tooling; clients have no delete operation.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := requireID("orderId", id); err != nil {
		return err
	}
	return s.orders.DeleteOrder(ctx, id)
}

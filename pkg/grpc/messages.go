package grpc

import (
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/resolver"
)

// Authority on the read requests is the scheme://host asset URLs are built against.
// When empty the server uses its configured public URL.

type CreateOrderRequest struct {
	UserID string             `json:"userId"`
	Items  []models.ItemInput `json:"items"`
}

type CreateOrderResponse struct {
	Order *models.Order `json:"order"`
}

type GetOrderRequest struct {
	ID        string `json:"id"`
	Authority string `json:"authority,omitempty"`
}

type UpdateOrderRequest struct {
	ID        string              `json:"id"`
	Status    *string             `json:"status,omitempty"`
	Items     *[]models.ItemInput `json:"items,omitempty"`
	Authority string              `json:"authority,omitempty"`
}

type OrderResponse struct {
	Order *resolver.Order `json:"order"`
}

// ListOrdersRequest lists one user's orders, or every order when UserID is empty.
type ListOrdersRequest struct {
	UserID    string `json:"userId,omitempty"`
	Authority string `json:"authority,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*resolver.Order `json:"orders"`
}

package models

import (
	"time"
)

const StatusPending = "pending"

// Order references its user and articles by id only. Articles are weak references:
// they may be deleted or changed without touching the order.
type Order struct {
	ID        string      `json:"_id"`
	UserID    string      `json:"userId"`
	Items     []OrderItem `json:"items"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

type OrderItem struct {
	ArticleID string `json:"articleId"`
	Quantity  int    `json:"quantity"`
}

// ItemInput is a line item as submitted by a client.
type ItemInput struct {
	ArticleID string `json:"articleId" validate:"required,objectid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// OrderUpdate holds the fields of a partial update. A nil field is left untouched;
// a non-nil Items replaces the whole sequence, even when empty.
type OrderUpdate struct {
	Status *string      `json:"status,omitempty"`
	Items  *[]OrderItem `json:"items,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u OrderUpdate) Empty() bool {
	return u.Status == nil && u.Items == nil
}

// Clone returns a deep copy of o so callers can hand it out without sharing the items slice.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

// ToItems converts client line items into stored order items.
func ToItems(in []ItemInput) []OrderItem {
	items := make([]OrderItem, len(in))
	for i, it := range in {
		items[i] = OrderItem{ArticleID: it.ArticleID, Quantity: it.Quantity}
	}
	return items
}

// OrderPatch is a partial update as submitted by a client.
type OrderPatch struct {
	Status *string      `json:"status,omitempty"`
	Items  *[]ItemInput `json:"items,omitempty"`
}

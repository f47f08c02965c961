package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is the payload published on order-created after a new
// order commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID          `json:"orderId"`
	UserID      uuid.UUID          `json:"userId"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Items       []OrderCreatedItem `json:"items"`
}

type OrderCreatedItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// OrderStatusUpdatedEvent is the payload published on order-status-updated
// after a status change commits. It carries both sides of the transition so
// consumers need no prior state.
type OrderStatusUpdatedEvent struct {
	OrderID   uuid.UUID   `json:"orderId"`
	OldStatus OrderStatus `json:"oldStatus"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewOrderCreatedEvent snapshots an order into its creation event.
func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	items := make([]OrderCreatedItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderCreatedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return OrderCreatedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       items,
	}
}

// Package domain holds the order aggregate and its lifecycle rules.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microshop/platform/internal/pkg/fault"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusRejected   OrderStatus = "Rejected"
	StatusCompleted  OrderStatus = "Completed"
	StatusCancelled  OrderStatus = "Cancelled"
)

// transitions is the full state machine. Absent keys are terminal states.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusRejected},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusRejected:   {StatusCancelled},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> to is a legal transition.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentStatus tracks payment progress orthogonally to the order status.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

// Order is the aggregate root. Items belong exclusively to their order and
// reference it by id only. Version backs optimistic concurrency in the
// repository; it is never mutated here.
type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	TotalAmount     decimal.Decimal
	ShippingAddress string
	BillingAddress  string
	TrackingNumber  string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// OrderItem is one priced line of an order.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// PricedLine is the input to NewOrder: a requested product with the unit
// price observed at creation time.
type PricedLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// NewOrder builds a Pending order from priced lines, computing each line's
// total and the aggregate amount. It enforces the creation invariants:
// at least one line, every quantity positive.
func NewOrder(userID uuid.UUID, shippingAddress, billingAddress string, lines []PricedLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, fault.New(fault.KindValidation, "order must contain at least one item")
	}

	now := time.Now().UTC()
	order := &Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		TotalAmount:     decimal.Zero,
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fault.New(fault.KindValidation,
				"quantity for product %s must be positive", line.ProductID)
		}
		total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		order.Items = append(order.Items, OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			TotalPrice: total,
		})
		order.TotalAmount = order.TotalAmount.Add(total)
	}

	return order, nil
}

// Transition validates and applies a status change.
func (o *Order) Transition(to OrderStatus) error {
	if !to.Valid() {
		return fault.New(fault.KindValidation, "unknown status %q", string(to))
	}
	if !o.Status.CanTransitionTo(to) {
		return fault.New(fault.KindInvalidTransition,
			"cannot transition order %s from %s to %s", o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

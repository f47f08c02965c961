package httpx

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microshop/platform/internal/order/domain"
)

type CreateOrderRequest struct {
	ShippingAddress string               `json:"shippingAddress"`
	BillingAddress  string               `json:"billingAddress"`
	Items           []CreateOrderItemDTO `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemDTO struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"userId"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"paymentStatus"`
	TotalAmount     decimal.Decimal     `json:"totalAmount"`
	ShippingAddress string              `json:"shippingAddress,omitempty"`
	BillingAddress  string              `json:"billingAddress,omitempty"`
	TrackingNumber  string              `json:"trackingNumber,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type OrderItemResponse struct {
	ProductID  uuid.UUID       `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PaginationHeader is serialized into the X-Pagination response header so
// clients can page without parsing the body envelope.
type PaginationHeader struct {
	TotalItems  int `json:"totalItems"`
	PageSize    int `json:"pageSize"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		}
	}
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		TrackingNumber:  o.TrackingNumber,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

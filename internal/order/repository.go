package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/microshop/platform/internal/order/domain"
)

// ListQuery selects a page of a user's orders, newest first. An empty
// Status means no status filter.
type ListQuery struct {
	UserID   uuid.UUID
	Status   domain.OrderStatus
	Page     int
	PageSize int
}

// Normalize applies paging defaults and bounds.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
}

// Repository is the persistence port for orders. Implementations report
// missing rows as fault.KindNotFound and optimistic-concurrency misses as
// fault.KindConflict; any other error is an infrastructure fault.
type Repository interface {
	// Create persists an order and its items as one atomic unit.
	Create(ctx context.Context, o *domain.Order) error

	// Get loads an order with its items.
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// GetForUser loads an order only when it belongs to userID.
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error)

	// List returns one page of orders plus the unpaged total count.
	List(ctx context.Context, q ListQuery) ([]domain.Order, int, error)

	// UpdateStatus persists a status change guarded by expectedVersion.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, updatedAt time.Time, expectedVersion int64) error
}

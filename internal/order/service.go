// Package order implements the order orchestration saga: synchronous
// validation against the product service, conditional persistence, and
// best-effort asynchronous event publication.
package order

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microshop/platform/internal/order/domain"
	"github.com/microshop/platform/internal/pkg/bus"
	"github.com/microshop/platform/internal/pkg/cache"
	"github.com/microshop/platform/internal/pkg/fault"
	"github.com/microshop/platform/internal/pkg/metrics"
)

// ProductClient is the port to the product service. Both calls fail with
// fault.KindUnavailable on network trouble or a non-success response.
type ProductClient interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
	GetPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

// RequestedItem is one line of a create-order request, before pricing.
type RequestedItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput carries everything CreateOrder needs.
type CreateOrderInput struct {
	UserID          uuid.UUID
	ShippingAddress string
	BillingAddress  string
	Items           []RequestedItem
}

// Service is the order orchestrator.
type Service struct {
	repo      Repository
	products  ProductClient
	publisher bus.Publisher
	cache     cache.Cache
	metrics   metrics.OrderCollector
	log       *slog.Logger

	callTimeout    time.Duration
	publishTimeout time.Duration
	cacheTTL       time.Duration

	// publishes tracks detached publish attempts so Close can drain them
	// on shutdown. Each attempt is individually time-bounded.
	publishes sync.WaitGroup
}

// ServiceOption tweaks service construction.
type ServiceOption func(*Service)

// WithCallTimeout bounds each product-service call.
func WithCallTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.callTimeout = d }
}

// WithPublishTimeout bounds each event publish attempt.
func WithPublishTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.publishTimeout = d }
}

// WithCacheTTL sets how long a fetched order stays cached.
func WithCacheTTL(d time.Duration) ServiceOption {
	return func(s *Service) { s.cacheTTL = d }
}

func NewService(
	repo Repository,
	products ProductClient,
	publisher bus.Publisher,
	orderCache cache.Cache,
	collector metrics.OrderCollector,
	log *slog.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:           repo,
		products:       products,
		publisher:      publisher,
		cache:          orderCache,
		metrics:        collector,
		log:            log,
		callTimeout:    5 * time.Second,
		publishTimeout: 5 * time.Second,
		cacheTTL:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close waits for in-flight publish attempts to finish. Call on shutdown
// after the HTTP server has drained.
func (s *Service) Close() {
	s.publishes.Wait()
}

// CreateOrder validates every requested line against the product service,
// prices the order from the currently observed prices, persists it
// atomically and fires the creation event.
//
// The availability gate is all-or-nothing: any unavailable item aborts the
// whole call before anything is written, so there is nothing to compensate.
// A publish failure after the commit is logged and counted but never rolls
// the order back; consumers catch up eventually or not at all.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	start := time.Now()
	defer func() { s.metrics.RecordProcessingTime(time.Since(start).Seconds()) }()

	if len(in.Items) == 0 {
		return nil, fault.New(fault.KindValidation, "order must contain at least one item")
	}
	for _, it := range in.Items {
		if it.ProductID == uuid.Nil {
			return nil, fault.New(fault.KindValidation, "every item needs a product id")
		}
		if it.Quantity <= 0 {
			return nil, fault.New(fault.KindValidation,
				"quantity for product %s must be positive", it.ProductID)
		}
	}

	lines, err := s.priceItems(ctx, in.Items)
	if err != nil {
		if fault.Is(err, fault.KindItemUnavailable) {
			s.metrics.RecordError("product_unavailable")
		}
		return nil, err
	}

	order, err := domain.NewOrder(in.UserID, in.ShippingAddress, in.BillingAddress, lines)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, order); err != nil {
		s.metrics.RecordError("create_order")
		return nil, fault.Wrap(err, fault.KindPersistenceFailed, "could not persist order")
	}
	s.metrics.RecordOrderCreated(string(order.Status))

	s.publishAsync(ctx, bus.TopicOrderCreated, order.ID, domain.NewOrderCreatedEvent(order))

	return order, nil
}

// priceItems queries availability and price for every item concurrently
// (items are independent) and joins the results in request order.
func (s *Service) priceItems(ctx context.Context, items []RequestedItem) ([]domain.PricedLine, error) {
	lines := make([]domain.PricedLine, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		go func(i int, it RequestedItem) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			defer cancel()

			available, err := s.products.CheckAvailability(callCtx, it.ProductID, it.Quantity)
			if err != nil {
				errs[i] = fault.Wrap(err, fault.KindItemUnavailable,
					"product %s is not available in the requested quantity", it.ProductID)
				return
			}
			if !available {
				errs[i] = fault.New(fault.KindItemUnavailable,
					"product %s is not available in the requested quantity", it.ProductID)
				return
			}

			price, err := s.products.GetPrice(callCtx, it.ProductID)
			if err != nil {
				errs[i] = fault.Wrap(err, fault.KindItemUnavailable,
					"product %s is not available in the requested quantity", it.ProductID)
				return
			}
			lines[i] = domain.PricedLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: price}
		}(i, it)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// GetOrder returns one of the caller's orders, read-through cached.
func (s *Service) GetOrder(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error) {
	key := s.cache.Key("order", id.String())
	if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
		var cached domain.Order
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			// The cache is keyed by order id only; enforce ownership here.
			if cached.UserID != userID {
				return nil, fault.New(fault.KindNotFound, "order not found")
			}
			return &cached, nil
		}
	}

	order, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(order); err == nil {
		if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
			s.log.DebugContext(ctx, "order cache write failed", "order_id", id, "error", err)
		}
	}
	return order, nil
}

// ListOrders returns one page of the caller's orders, newest first, with
// the unpaged total for pagination metadata.
func (s *Service) ListOrders(ctx context.Context, q ListQuery) ([]domain.Order, int, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, fault.New(fault.KindValidation, "unknown status %q", string(q.Status))
	}
	q.Normalize()
	return s.repo.List(ctx, q)
}

// UpdateStatus applies a status transition, persists it under optimistic
// concurrency and fires the status-updated event. Concurrent writers racing
// on the same order surface as fault.KindConflict from the repository.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus domain.OrderStatus) (*domain.Order, error) {
	start := time.Now()
	defer func() { s.metrics.RecordProcessingTime(time.Since(start).Seconds()) }()

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldStatus := order.Status
	if err := order.Transition(newStatus); err != nil {
		return nil, err
	}

	err = s.repo.UpdateStatus(ctx, id, order.Status, order.UpdatedAt, order.Version)
	if err != nil {
		if _, kinded := fault.KindOf(err); kinded {
			return nil, err
		}
		s.metrics.RecordError("update_status")
		return nil, fault.Wrap(err, fault.KindPersistenceFailed, "could not persist status change")
	}
	order.Version++

	if err := s.cache.Delete(ctx, s.cache.Key("order", id.String())); err != nil {
		s.log.DebugContext(ctx, "order cache invalidation failed", "order_id", id, "error", err)
	}

	s.metrics.RecordStatusChange(string(oldStatus), string(order.Status))

	s.publishAsync(ctx, bus.TopicOrderStatusUpdated, order.ID, domain.OrderStatusUpdatedEvent{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		Status:    order.Status,
		UpdatedAt: order.UpdatedAt,
	})

	return order, nil
}

// publishAsync fires an event without blocking the caller. The context is
// detached so sending the HTTP response does not cancel the attempt, while
// tracing metadata still propagates. Failure is logged and counted; the
// committed order is the source of truth and is never rolled back.
func (s *Service) publishAsync(ctx context.Context, topic string, orderID uuid.UUID, payload any) {
	detached := context.WithoutCancel(ctx)
	s.publishes.Add(1)
	go func() {
		defer s.publishes.Done()
		pubCtx, cancel := context.WithTimeout(detached, s.publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(pubCtx, topic, orderID.String(), payload); err != nil {
			s.log.ErrorContext(pubCtx, "event publish failed, downstream consumers will not see this change",
				"topic", topic, "order_id", orderID, "error", err)
			s.metrics.RecordError("publish_failed")
		}
	}()
}

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microshop/platform/internal/order"
	"github.com/microshop/platform/internal/order/domain"
	"github.com/microshop/platform/internal/pkg/fault"
)

// stubService lets each test script the orchestrator's answers.
type stubService struct {
	createFn func(ctx context.Context, in order.CreateOrderInput) (*domain.Order, error)
	getFn    func(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error)
	listFn   func(ctx context.Context, q order.ListQuery) ([]domain.Order, int, error)
	updateFn func(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
}

func (s *stubService) CreateOrder(ctx context.Context, in order.CreateOrderInput) (*domain.Order, error) {
	return s.createFn(ctx, in)
}

func (s *stubService) GetOrder(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error) {
	return s.getFn(ctx, userID, id)
}

func (s *stubService) ListOrders(ctx context.Context, q order.ListQuery) ([]domain.Order, int, error) {
	return s.listFn(ctx, q)
}

func (s *stubService) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	return s.updateFn(ctx, id, to)
}

func serve(t *testing.T, svc OrderService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(NewHandler(svc), http.NotFoundHandler()).ServeHTTP(rec, req)
	return rec
}

func sampleOrder(t *testing.T, userID uuid.UUID) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(userID, "12 Main St", "12 Main St", []domain.PricedLine{
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrderEndpoint(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubService{
		createFn: func(_ context.Context, in order.CreateOrderInput) (*domain.Order, error) {
			assert.Equal(t, userID, in.UserID)
			require.Len(t, in.Items, 1)
			assert.Equal(t, productID, in.Items[0].ProductID)
			return sampleOrder(t, userID), nil
		},
	}

	body := `{"shippingAddress":"12 Main St","items":[{"productId":"` + productID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set(HeaderUserID, userID.String())

	rec := serve(t, svc, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, userID, resp.UserID)
	assert.Equal(t, string(domain.StatusPending), resp.Status)
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("20.00")))
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	rec := serve(t, &stubService{}, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[]}`))
	req.Header.Set(HeaderUserID, uuid.NewString())
	rec := serve(t, &stubService{}, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":`))
	req.Header.Set(HeaderUserID, uuid.NewString())
	rec := serve(t, &stubService{}, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFaultStatusMapping(t *testing.T) {
	cases := []struct {
		kind fault.Kind
		want int
	}{
		{fault.KindItemUnavailable, http.StatusBadRequest},
		{fault.KindValidation, http.StatusBadRequest},
		{fault.KindNotFound, http.StatusNotFound},
		{fault.KindConflict, http.StatusConflict},
		{fault.KindPersistenceFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			svc := &stubService{
				createFn: func(context.Context, order.CreateOrderInput) (*domain.Order, error) {
					return nil, fault.New(tc.kind, "boom")
				},
			}
			body := `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}]}`
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			req.Header.Set(HeaderUserID, uuid.NewString())

			rec := serve(t, svc, req)
			assert.Equal(t, tc.want, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(tc.kind), resp.Error)
		})
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	userID := uuid.New()
	existing := sampleOrder(t, userID)
	svc := &stubService{
		getFn: func(_ context.Context, gotUser, gotID uuid.UUID) (*domain.Order, error) {
			assert.Equal(t, userID, gotUser)
			if gotID != existing.ID {
				return nil, fault.New(fault.KindNotFound, "order %s not found", gotID)
			}
			return existing, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+existing.ID.String(), nil)
	req.Header.Set(HeaderUserID, userID.String())
	rec := serve(t, svc, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	req.Header.Set(HeaderUserID, userID.String())
	rec = serve(t, svc, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	req.Header.Set(HeaderUserID, userID.String())
	rec = serve(t, svc, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersPaginationHeader(t *testing.T) {
	userID := uuid.New()
	svc := &stubService{
		listFn: func(_ context.Context, q order.ListQuery) ([]domain.Order, int, error) {
			assert.Equal(t, 2, q.Page)
			assert.Equal(t, 10, q.PageSize)
			return []domain.Order{*sampleOrder(t, userID)}, 25, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders?page=2", nil)
	req.Header.Set(HeaderUserID, userID.String())
	rec := serve(t, svc, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var meta PaginationHeader
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("X-Pagination")), &meta))
	assert.Equal(t, 25, meta.TotalItems)
	assert.Equal(t, 10, meta.PageSize)
	assert.Equal(t, 2, meta.CurrentPage)
	assert.Equal(t, 3, meta.TotalPages)

	var body []OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	userID := uuid.New()
	existing := sampleOrder(t, userID)
	svc := &stubService{
		updateFn: func(_ context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
			assert.Equal(t, existing.ID, id)
			if err := existing.Transition(to); err != nil {
				return nil, err
			}
			return existing, nil
		},
	}

	body := `{"status":"Processing"}`
	req := httptest.NewRequest(http.MethodPut, "/api/orders/"+existing.ID.String()+"/status", strings.NewReader(body))
	rec := serve(t, svc, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusProcessing), resp.Status)

	// Processing -> Pending is not a legal transition.
	req = httptest.NewRequest(http.MethodPut, "/api/orders/"+existing.ID.String()+"/status", strings.NewReader(`{"status":"Pending"}`))
	rec = serve(t, svc, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

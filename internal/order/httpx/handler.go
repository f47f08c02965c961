package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/microshop/platform/internal/order"
	"github.com/microshop/platform/internal/order/domain"
	"github.com/microshop/platform/internal/pkg/fault"
)

// OrderService is the slice of the orchestrator the HTTP layer depends on.
type OrderService interface {
	CreateOrder(ctx context.Context, in order.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, q order.ListQuery) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
}

// HeaderUserID carries the authenticated user's id, set by the edge before
// the request reaches this service.
const HeaderUserID = "X-User-ID"

// Handler handles incoming HTTP requests for the order domain.
type Handler struct {
	orders   OrderService
	validate *validator.Validate
}

func NewHandler(orders OrderService) *Handler {
	return &Handler{
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateOrder receives the request, runs the availability gate and persists
// a Pending order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	items := make([]order.RequestedItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.RequestedItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	slog.InfoContext(r.Context(), "creating order", "user_id", userID, "items", len(items))

	created, err := h.orders.CreateOrder(r.Context(), order.CreateOrderInput{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Items:           items,
	})
	if err != nil {
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrderToResponse(created))
}

// GetOrder retrieves a single order scoped to the calling user.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", err.Error())
		return
	}

	found, err := h.orders.GetOrder(r.Context(), userID, id)
	if err != nil {
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(found))
}

// ListOrders returns one page of the caller's orders, newest first. Paging
// metadata travels in the X-Pagination header.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	q := order.ListQuery{
		UserID: userID,
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
	}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.PageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	q.Normalize()

	orders, total, err := h.orders.ListOrders(r.Context(), q)
	if err != nil {
		writeFault(w, err)
		return
	}

	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = mapOrderToResponse(&orders[i])
	}

	writePagination(w, total, q)
	writeJSON(w, http.StatusOK, out)
}

// UpdateStatus applies a status transition to an order.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", err.Error())
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(updated))
}

func identity(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing_identity", "a valid "+HeaderUserID+" header is required")
		return uuid.Nil, false
	}
	return userID, true
}

// writeFault maps a domain fault kind to its HTTP status. Unknown errors
// collapse to 500 without leaking internals.
func writeFault(w http.ResponseWriter, err error) {
	kind, ok := fault.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	switch kind {
	case fault.KindValidation, fault.KindItemUnavailable, fault.KindInvalidTransition:
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case fault.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), err.Error())
	case fault.KindConflict:
		writeError(w, http.StatusConflict, string(kind), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, string(kind), "")
	}
}

func writePagination(w http.ResponseWriter, total int, q order.ListQuery) {
	pages := total / q.PageSize
	if total%q.PageSize != 0 {
		pages++
	}
	meta, _ := json.Marshal(PaginationHeader{
		TotalItems:  total,
		PageSize:    q.PageSize,
		CurrentPage: q.Page,
		TotalPages:  pages,
	})
	w.Header().Set("X-Pagination", string(meta))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

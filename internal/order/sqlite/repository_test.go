package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microshop/platform/internal/order"
	"github.com/microshop/platform/internal/order/domain"
	"github.com/microshop/platform/internal/pkg/fault"
)

func openRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestOrder(t *testing.T, userID uuid.UUID, createdAt time.Time) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(userID, "1 Main St", "1 Main St", []domain.PricedLine{
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("3.25")},
	})
	require.NoError(t, err)
	o.CreatedAt = createdAt
	o.UpdatedAt = createdAt
	return o
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	o := newTestOrder(t, userID, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("23.25")))
	assert.Equal(t, "1 Main St", got.ShippingAddress)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Items, 2)
	assert.Equal(t, o.Items[0].ProductID, got.Items[0].ProductID)
	assert.True(t, got.Items[0].TotalPrice.Equal(decimal.RequireFromString("20.00")))
}

func TestGetMissingOrder(t *testing.T) {
	repo := openRepo(t)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestGetForUserScoping(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	o := newTestOrder(t, owner, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, o))

	_, err := repo.GetForUser(ctx, owner, o.ID)
	assert.NoError(t, err)

	_, err = repo.GetForUser(ctx, stranger, o.ID)
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestListPaginationAndFilter(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	// Five orders with increasing creation times; the middle one cancelled.
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		o := newTestOrder(t, userID, base.Add(time.Duration(i)*time.Minute))
		if i == 2 {
			o.Status = domain.StatusCancelled
		}
		require.NoError(t, repo.Create(ctx, o))
		ids = append(ids, o.ID)
	}
	// Another user's order must never show up.
	require.NoError(t, repo.Create(ctx, newTestOrder(t, uuid.New(), base)))

	page, total, err := repo.List(ctx, order.ListQuery{UserID: userID, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)
	assert.Len(t, page[0].Items, 2)

	page, total, err = repo.List(ctx, order.ListQuery{UserID: userID, Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, total, err = repo.List(ctx, order.ListQuery{
		UserID: userID, Status: domain.StatusCancelled, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)
}

func TestUpdateStatusVersioning(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	o := newTestOrder(t, uuid.New(), time.Now().UTC())
	require.NoError(t, repo.Create(ctx, o))

	err := repo.UpdateStatus(ctx, o.ID, domain.StatusProcessing, time.Now().UTC(), 1)
	require.NoError(t, err)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Equal(t, int64(2), got.Version)

	// A writer still holding version 1 must see a conflict, and the row
	// must keep the committed state.
	err = repo.UpdateStatus(ctx, o.ID, domain.StatusCancelled, time.Now().UTC(), 1)
	assert.True(t, fault.Is(err, fault.KindConflict))

	got, err = repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	repo := openRepo(t)

	err := repo.UpdateStatus(context.Background(), uuid.New(), domain.StatusProcessing, time.Now().UTC(), 1)
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

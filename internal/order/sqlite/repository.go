// Package sqlite persists orders in SQLite through database/sql.
//
// WAL mode is enabled on Open so readers never block the writer; the order
// service reads (list/get) while request goroutines commit new orders. We
// use modernc.org/sqlite, the pure-Go driver, so the binary builds without
// CGO.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microshop/platform/internal/order"
	"github.com/microshop/platform/internal/order/domain"
	"github.com/microshop/platform/internal/pkg/fault"

	_ "modernc.org/sqlite"
)

// schema is applied once on Open. Money is stored as decimal TEXT and
// times as RFC3339 TEXT, the SQLite idiom. The version column backs
// optimistic concurrency on status updates; items cascade with their order.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id               TEXT    PRIMARY KEY,
    user_id          TEXT    NOT NULL,
    status           TEXT    NOT NULL,
    payment_status   TEXT    NOT NULL,
    total_amount     TEXT    NOT NULL,
    shipping_address TEXT    NOT NULL DEFAULT '',
    billing_address  TEXT    NOT NULL DEFAULT '',
    tracking_number  TEXT    NOT NULL DEFAULT '',
    version          INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT    NOT NULL,
    updated_at       TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
    id          TEXT    PRIMARY KEY,
    order_id    TEXT    NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id  TEXT    NOT NULL,
    quantity    INTEGER NOT NULL,
    unit_price  TEXT    NOT NULL,
    total_price TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
`

// Repository is the SQLite implementation of order.Repository.
type Repository struct {
	db *sql.DB
}

var _ order.Repository = (*Repository)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite allows a single writer; keeping one connection avoids
	// SQLITE_BUSY churn under concurrent request goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertOrder = `
		INSERT INTO orders
			(id, user_id, status, payment_status, total_amount,
			 shipping_address, billing_address, tracking_number,
			 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insertOrder,
		o.ID.String(),
		o.UserID.String(),
		string(o.Status),
		string(o.PaymentStatus),
		o.TotalAmount.String(),
		o.ShippingAddress,
		o.BillingAddress,
		o.TrackingNumber,
		o.Version,
		formatTime(o.CreatedAt),
		formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %s: %w", o.ID, err)
	}

	const insertItem = `
		INSERT INTO order_items
			(id, order_id, product_id, quantity, unit_price, total_price)
		VALUES (?, ?, ?, ?, ?, ?)`

	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx, insertItem,
			it.ID.String(),
			it.OrderID.String(),
			it.ProductID.String(),
			it.Quantity,
			it.UnitPrice.String(),
			it.TotalPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert item %s for order %s: %w", it.ID, o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit create order %s: %w", o.ID, err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getWhere(ctx, "id = ?", id.String())
}

func (r *Repository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error) {
	return r.getWhere(ctx, "id = ? AND user_id = ?", id.String(), userID.String())
}

func (r *Repository) getWhere(ctx context.Context, where string, args ...any) (*domain.Order, error) {
	q := `
		SELECT id, user_id, status, payment_status, total_amount,
		       shipping_address, billing_address, tracking_number,
		       version, created_at, updated_at
		FROM   orders
		WHERE  ` + where

	o, err := scanOrder(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order: %w", err)
	}

	if err := r.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) List(ctx context.Context, q order.ListQuery) ([]domain.Order, int, error) {
	where := "user_id = ?"
	args := []any{q.UserID.String()}
	if q.Status != "" {
		where += " AND status = ?"
		args = append(args, string(q.Status))
	}

	var total int
	countQ := "SELECT COUNT(*) FROM orders WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count orders: %w", err)
	}

	pageQ := `
		SELECT id, user_id, status, payment_status, total_amount,
		       shipping_address, billing_address, tracking_number,
		       version, created_at, updated_at
		FROM   orders
		WHERE  ` + where + `
		ORDER  BY created_at DESC, id DESC
		LIMIT  ? OFFSET ?`
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, pageQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var page []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: list orders: %w", err)
		}
		page = append(page, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: list orders: %w", err)
	}

	if err := r.loadItems(ctx, page); err != nil {
		return nil, 0, err
	}

	out := make([]domain.Order, len(page))
	for i, o := range page {
		out[i] = *o
	}
	return out, total, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, updatedAt time.Time, expectedVersion int64) error {
	const q = `
		UPDATE orders
		SET    status = ?, updated_at = ?, version = version + 1
		WHERE  id = ? AND version = ?`

	res, err := r.db.ExecContext(ctx, q,
		string(status), formatTime(updatedAt), id.String(), expectedVersion)
	if err != nil {
		return fmt.Errorf("sqlite: update status for %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update status for %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: either the order is gone or another writer bumped the
	// version between our read and this update.
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE id = ?", id.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: update status for %s: %w", id, err)
	}
	if exists == 0 {
		return fault.New(fault.KindNotFound, "order %s not found", id)
	}
	return fault.New(fault.KindConflict, "order %s was modified concurrently", id)
}

// loadItems fetches the items for all orders in one query and attaches
// them to their parents.
func (r *Repository) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		byID[o.ID.String()] = o
		placeholders[i] = "?"
		args[i] = o.ID.String()
	}

	q := `
		SELECT id, order_id, product_id, quantity, unit_price, total_price
		FROM   order_items
		WHERE  order_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER  BY rowid`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sqlite: load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idS, orderIDS, productIDS, unitS, totalS string
			quantity                                 int
		)
		if err := rows.Scan(&idS, &orderIDS, &productIDS, &quantity, &unitS, &totalS); err != nil {
			return fmt.Errorf("sqlite: load items: %w", err)
		}
		item, err := buildItem(idS, orderIDS, productIDS, quantity, unitS, totalS)
		if err != nil {
			return err
		}
		if parent, ok := byID[orderIDS]; ok {
			parent.Items = append(parent.Items, item)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		idS, userIDS, statusS, payS, totalS             string
		shipping, billing, tracking, createdS, updatedS string
		version                                         int64
	)
	err := row.Scan(&idS, &userIDS, &statusS, &payS, &totalS,
		&shipping, &billing, &tracking, &version, &createdS, &updatedS)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idS)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad order id %q: %w", idS, err)
	}
	userID, err := uuid.Parse(userIDS)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad user id %q: %w", userIDS, err)
	}
	total, err := decimal.NewFromString(totalS)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad total %q: %w", totalS, err)
	}
	createdAt, err := parseTime(createdS)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedS)
	if err != nil {
		return nil, err
	}

	return &domain.Order{
		ID:              id,
		UserID:          userID,
		Status:          domain.OrderStatus(statusS),
		PaymentStatus:   domain.PaymentStatus(payS),
		TotalAmount:     total,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		TrackingNumber:  tracking,
		Version:         version,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func buildItem(idS, orderIDS, productIDS string, quantity int, unitS, totalS string) (domain.OrderItem, error) {
	id, err := uuid.Parse(idS)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("sqlite: bad item id %q: %w", idS, err)
	}
	orderID, err := uuid.Parse(orderIDS)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("sqlite: bad item order id %q: %w", orderIDS, err)
	}
	productID, err := uuid.Parse(productIDS)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("sqlite: bad product id %q: %w", productIDS, err)
	}
	unit, err := decimal.NewFromString(unitS)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("sqlite: bad unit price %q: %w", unitS, err)
	}
	total, err := decimal.NewFromString(totalS)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("sqlite: bad total price %q: %w", totalS, err)
	}
	return domain.OrderItem{
		ID:         id,
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unit,
		TotalPrice: total,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

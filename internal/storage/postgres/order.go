package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galadrinks/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (customer_id, status)
		VALUES ($1, 'pending')
		RETURNING id, customer_id, status, created_at`

	// Items are joined against the caller's orders, so rows for foreign or
	// unknown orders are dropped and show up as a short row count.
	insertItemsSQL = `INSERT INTO order_items (order_id, product_id, qty, unit_price_pence)
		SELECT o.id, i.product_id::uuid, i.qty, i.unit_price_pence
		FROM unnest($2::text[], $3::text[], $4::int[], $5::bigint[])
			AS i(order_id, product_id, qty, unit_price_pence)
		JOIN orders o ON o.id = i.order_id::uuid AND o.customer_id = $1`

	deleteEmptyOrderSQL = `DELETE FROM orders o
		WHERE o.id = $1 AND o.customer_id = $2 AND o.status = 'pending'
			AND NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id)`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND customer_id = $2)`

	placeOrderSQL = `INSERT INTO orders (customer_id, status, idempotency_key)
		VALUES ($1, 'pending', NULLIF($2, ''))
		ON CONFLICT (customer_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id, customer_id, status, created_at`

	orderByIdempotencyKeySQL = `SELECT id, customer_id, status, created_at
		FROM orders WHERE customer_id = $1 AND idempotency_key = $2`

	listOrdersSQL = `SELECT id, customer_id, status, created_at
		FROM orders WHERE customer_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`

	listItemsSQL = `SELECT oi.order_id, oi.product_id, oi.qty, oi.unit_price_pence, p.name, p.sku
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::text[]::uuid[])
		ORDER BY p.name, p.sku`
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

var (
	_ order.Writer       = (*OrderRepository)(nil)
	_ order.AtomicPlacer = (*OrderRepository)(nil)
	_ order.Reader       = (*OrderRepository)(nil)
)

// OrderRepository implements the order write and read contracts backed by
// PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateOrder inserts a pending order header and returns the created row.
func (r *OrderRepository) CreateOrder(ctx context.Context, customerID string) (*order.Order, error) {
	var o *order.Order
	err := inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, createOrderSQL, customerID)
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		o, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// InsertItems writes all items in a single statement. It fails with
// order.ErrNotFound when any item references an order the customer does not
// own.
func (r *OrderRepository) InsertItems(ctx context.Context, customerID string, items []order.Item) error {
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		if !validID(it.OrderID) {
			return order.ErrNotFound
		}
	}

	return inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		return insertItems(ctx, tx, customerID, items)
	})
}

// DeleteOrder removes the customer's pending order if it has no items.
func (r *OrderRepository) DeleteOrder(ctx context.Context, customerID, orderID string) error {
	if !validID(orderID) {
		return order.ErrNotFound
	}

	return inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteEmptyOrderSQL, orderID, customerID)
		if err != nil {
			return fmt.Errorf("deleting order %q: %w", orderID, err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var exists bool
		if err := tx.QueryRow(ctx, orderExistsSQL, orderID, customerID).Scan(&exists); err != nil {
			return fmt.Errorf("checking order %q: %w", orderID, err)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrNotEmpty
	})
}

// PlaceOrder inserts the header and all items in one transaction. A second
// call with the same idempotency key returns the first order unchanged.
func (r *OrderRepository) PlaceOrder(ctx context.Context, customerID string, items []order.Item, idempotencyKey string) (*order.Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order has no items")
	}

	var o *order.Order
	err := inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, placeOrderSQL, customerID, idempotencyKey)
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		o, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if errors.Is(err, pgx.ErrNoRows) {
			// The key was used before: replay the existing order.
			o, err = loadByIdempotencyKey(ctx, tx, customerID, idempotencyKey)
			return err
		}
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		o.Items = make([]order.Item, len(items))
		for i, it := range items {
			it.OrderID = o.ID
			o.Items[i] = it
		}
		return insertItems(ctx, tx, customerID, o.Items)
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("duplicate product in order: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListByCustomer returns the customer's most recent orders with their items.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = order.DefaultListLimit
	}

	var orders []order.Order
	err := inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, listOrdersSQL, customerID, limit)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}
		headers, err := pgx.CollectRows(rows, scanOrder)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}

		orders = make([]order.Order, len(headers))
		for i, h := range headers {
			orders[i] = *h
		}
		return attachItems(ctx, tx, orders)
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, customerID string, items []order.Item) error {
	var (
		orderIDs   = make([]string, len(items))
		productIDs = make([]string, len(items))
		qtys       = make([]int32, len(items))
		prices     = make([]int64, len(items))
	)
	for i, it := range items {
		if it.Qty < 1 || it.Qty > order.MaxQty {
			return fmt.Errorf("inserting order items: item %d: qty %d out of range", i, it.Qty)
		}
		orderIDs[i] = it.OrderID
		productIDs[i] = it.ProductID
		qtys[i] = int32(it.Qty)
		prices[i] = it.UnitPricePence
	}

	tag, err := tx.Exec(ctx, insertItemsSQL, customerID, orderIDs, productIDs, qtys, prices)
	if err != nil {
		return fmt.Errorf("inserting order items: %w", err)
	}
	if int(tag.RowsAffected()) != len(items) {
		return order.ErrNotFound
	}
	return nil
}

func loadByIdempotencyKey(ctx context.Context, tx pgx.Tx, customerID, key string) (*order.Order, error) {
	rows, err := tx.Query(ctx, orderByIdempotencyKeySQL, customerID, key)
	if err != nil {
		return nil, fmt.Errorf("loading order by idempotency key: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("loading order by idempotency key: %w", err)
	}

	orders := []order.Order{*o}
	if err := attachItems(ctx, tx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachItems loads the items of all orders in one query.
func attachItems(ctx context.Context, tx pgx.Tx, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = i
		orders[i].Items = []order.Item{}
	}

	rows, err := tx.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.OrderID, &it.ProductID, &it.Qty, &it.UnitPricePence, &it.ProductName, &it.SKU)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}

	for _, it := range items {
		if i, ok := byID[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (*order.Order, error) {
	var o order.Order
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

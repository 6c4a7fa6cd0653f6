package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order header.
type Status string

const (
	// StatusPending is the state every order is created in.
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// MaxQty is the largest quantity a single order line may carry. Carts clamp
// to it and every write path rejects anything above it.
const MaxQty = 9999

var (
	// ErrNotFound is returned when an order does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrNotEmpty is returned when deleting an order that already has items
	// or has left the pending state.
	ErrNotEmpty = errors.New("order has items")
)

// Order is the header of a placed order. Items is only populated by reads
// that join order_items.
type Order struct {
	ID         string
	CustomerID string
	Status     Status
	CreatedAt  time.Time
	Items      []Item
}

// TotalPence sums qty * unit price over the loaded items.
func (o *Order) TotalPence() int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Qty) * it.UnitPricePence
	}
	return total
}

// Item is a single order line. UnitPricePence is copied from the cart
// snapshot and never re-fetched. ProductName and SKU are read-side only.
type Item struct {
	OrderID        string
	ProductID      string
	Qty            int
	UnitPricePence int64

	ProductName string
	SKU         string
}

// Writer is the two-step write surface used by checkout: insert the header,
// then bulk insert its items. DeleteOrder removes the caller's own pending
// order when it has no items.
type Writer interface {
	CreateOrder(ctx context.Context, customerID string) (*Order, error)
	InsertItems(ctx context.Context, customerID string, items []Item) error
	DeleteOrder(ctx context.Context, customerID, orderID string) error
}

// AtomicPlacer is implemented by backends that can persist a header and its
// items in one transaction. A repeated idempotency key returns the order
// created by the first call.
type AtomicPlacer interface {
	PlaceOrder(ctx context.Context, customerID string, items []Item, idempotencyKey string) (*Order, error)
}

// Reader lists a customer's orders, newest first, with their items.
type Reader interface {
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// DefaultListLimit is the page size used when callers pass a non-positive limit.
const DefaultListLimit = 50

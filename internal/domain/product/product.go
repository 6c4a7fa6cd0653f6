package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item as seen by one customer. PricePence is that
// customer's negotiated price and is nil when no price is set for them.
type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	Category    string
	Unit        string
	PricePence  *int64
}

// HasPrice reports whether the customer can order this product.
func (p Product) HasPrice() bool {
	return p.PricePence != nil
}

// Repository defines customer-scoped read operations for the catalog.
type Repository interface {
	ListForCustomer(ctx context.Context, customerID string) ([]Product, error)
	GetForCustomer(ctx context.Context, customerID, productID string) (*Product, error)
}

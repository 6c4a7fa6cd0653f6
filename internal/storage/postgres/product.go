package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galadrinks/storefront/internal/domain/product"
)

const (
	listProductsForCustomerSQL = `SELECT p.id, p.sku, p.name, p.description, p.category, p.unit, cp.price_pence
		FROM products p
		LEFT JOIN customer_prices cp ON cp.product_id = p.id AND cp.customer_id = $1
		ORDER BY p.name, p.sku`

	getProductForCustomerSQL = `SELECT p.id, p.sku, p.name, p.description, p.category, p.unit, cp.price_pence
		FROM products p
		LEFT JOIN customer_prices cp ON cp.product_id = p.id AND cp.customer_id = $1
		WHERE p.id = $2`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// ListForCustomer returns the whole catalog ordered by name, each product
// carrying the customer's price when one is set.
func (r *ProductRepository) ListForCustomer(ctx context.Context, customerID string) ([]product.Product, error) {
	var products []product.Product
	err := inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, listProductsForCustomerSQL, customerID)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}
		products, err = pgx.CollectRows(rows, scanProduct)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []product.Product{}
	}
	return products, nil
}

// GetForCustomer returns a single product with the customer's price.
func (r *ProductRepository) GetForCustomer(ctx context.Context, customerID, productID string) (*product.Product, error) {
	if !validID(productID) {
		return nil, product.ErrNotFound
	}

	var p product.Product
	err := inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, getProductForCustomerSQL, customerID, productID)
		if err != nil {
			return fmt.Errorf("getting product %q: %w", productID, err)
		}
		p, err = pgx.CollectExactlyOneRow(rows, scanProduct)
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("getting product %q: %w", productID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Unit, &p.PricePence)
	return p, err
}

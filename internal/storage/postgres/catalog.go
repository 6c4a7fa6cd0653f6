package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/product"
)

const (
	upsertCustomerSQL = `INSERT INTO customers (customer_number, name, contact_email, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_number) DO UPDATE
			SET name = EXCLUDED.name,
				contact_email = EXCLUDED.contact_email,
				password_hash = EXCLUDED.password_hash
		RETURNING id`

	upsertProductSQL = `INSERT INTO products (sku, name, description, category, unit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sku) DO UPDATE
			SET name = EXCLUDED.name,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				unit = EXCLUDED.unit
		RETURNING id`

	productIDsBySKUSQL = `SELECT sku, id FROM products`

	customerIDsByNumberSQL = `SELECT customer_number, id FROM customers`

	upsertPriceSQL = `INSERT INTO customer_prices (customer_id, product_id, price_pence)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, product_id) DO UPDATE SET price_pence = EXCLUDED.price_pence`
)

// CatalogRepository holds the operator writes used by the seeding and price
// ingest tools.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// UpsertCustomer creates or updates a customer keyed by customer number and
// returns its id.
func (r *CatalogRepository) UpsertCustomer(ctx context.Context, c auth.Customer) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, upsertCustomerSQL,
		c.CustomerNumber, c.Name, c.ContactEmail, c.PasswordHash,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting customer %q: %w", c.CustomerNumber, err)
	}
	return id, nil
}

// UpsertProduct creates or updates a product keyed by SKU and returns its id.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p product.Product) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.SKU, p.Name, p.Description, p.Category, p.Unit,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting product %q: %w", p.SKU, err)
	}
	return id, nil
}

// ProductIDsBySKU maps every SKU in the catalog to its product id.
func (r *CatalogRepository) ProductIDsBySKU(ctx context.Context) (map[string]string, error) {
	return r.collectPairs(ctx, productIDsBySKUSQL, "listing product skus")
}

// CustomerIDsByNumber maps every customer number to its customer id.
func (r *CatalogRepository) CustomerIDsByNumber(ctx context.Context) (map[string]string, error) {
	return r.collectPairs(ctx, customerIDsByNumberSQL, "listing customer numbers")
}

// SetPrices upserts one customer's prices, keyed by product id, in a single
// batch inside that customer's scope.
func (r *CatalogRepository) SetPrices(ctx context.Context, customerID string, prices map[string]int64) error {
	if len(prices) == 0 {
		return nil
	}
	return inCustomerTx(ctx, r.pool, customerID, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for productID, pence := range prices {
			batch.Queue(upsertPriceSQL, customerID, productID, pence)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting prices for customer %q: %w", customerID, err)
		}
		return nil
	})
}

func (r *CatalogRepository) collectPairs(ctx context.Context, sql, op string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

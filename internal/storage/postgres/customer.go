package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galadrinks/storefront/internal/domain/auth"
)

const (
	findCustomerByEmailSQL = `SELECT id, customer_number, name, contact_email, password_hash
		FROM customers WHERE lower(contact_email) = lower($1)`

	emailByCustomerNumberSQL = `SELECT contact_email FROM customers WHERE customer_number = $1`
)

var _ auth.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements auth.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByEmail looks a customer up by contact email, case-insensitively.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*auth.Customer, error) {
	var c auth.Customer
	err := r.pool.QueryRow(ctx, findCustomerByEmailSQL, email).
		Scan(&c.ID, &c.CustomerNumber, &c.Name, &c.ContactEmail, &c.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding customer by email: %w", err)
	}
	return &c, nil
}

// EmailByCustomerNumber returns the contact email for an account number.
func (r *CustomerRepository) EmailByCustomerNumber(ctx context.Context, customerNumber string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, emailByCustomerNumberSQL, customerNumber).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", auth.ErrCustomerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("finding customer %q: %w", customerNumber, err)
	}
	return email, nil
}

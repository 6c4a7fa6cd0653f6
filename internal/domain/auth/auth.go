// Package auth holds customer identity: credential checks, session tokens
// and the authenticated customer carried in a request context.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned for a missing, malformed or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCustomerNotFound is returned by lookups on unknown customer numbers.
	ErrCustomerNotFound = errors.New("customer not found")
)

// Customer is a business account that can log in and place orders.
type Customer struct {
	ID             string
	CustomerNumber string
	Name           string
	ContactEmail   string
	PasswordHash   string
}

// Session is an issued access token for one customer.
type Session struct {
	AccessToken string
	CustomerID  string
	ExpiresAt   time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Repository looks customers up for authentication. Both lookups run
// outside any customer scope.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	EmailByCustomerNumber(ctx context.Context, customerNumber string) (string, error)
}

type customerKey struct{}

// WithCustomer returns a context carrying the authenticated customer id.
func WithCustomer(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerKey{}, customerID)
}

// CustomerFromContext returns the authenticated customer id, if any.
func CustomerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(customerKey{}).(string)
	return id, ok && id != ""
}

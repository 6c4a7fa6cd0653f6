package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
	"github.com/galadrinks/storefront/internal/wire"
)

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	var out wire.Session
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   wire.Login{Email: email, Password: password},
		want:   http.StatusOK,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	sess := auth.Session(out)
	return &sess, nil
}

// CustomerEmail resolves an account number to its login email.
func (c *Client) CustomerEmail(ctx context.Context, customerNumber string) (string, error) {
	var out wire.Email
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/customer-email",
		body:   wire.CustomerNumber{CustomerNumber: customerNumber},
		want:   http.StatusOK,
		out:    &out,
	}); err != nil {
		return "", err
	}
	return out.Email, nil
}

// ListForCustomer lists the catalog. The customer is the token's owner.
func (c *Client) ListForCustomer(ctx context.Context, _ string) ([]product.Product, error) {
	var out wire.Products
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/products",
		want:   http.StatusOK,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// GetForCustomer fetches one product with the token owner's price.
func (c *Client) GetForCustomer(ctx context.Context, _, productID string) (*product.Product, error) {
	var out wire.Product
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/products/" + url.PathEscape(productID),
		want:   http.StatusOK,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	p := product.Product(out)
	return &p, nil
}

// CreateOrder inserts a pending order header.
func (c *Client) CreateOrder(ctx context.Context, _ string) (*order.Order, error) {
	var out wire.Order
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/orders",
		want:   http.StatusCreated,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	o := order.Order(out)
	return &o, nil
}

// InsertItems bulk inserts order items.
func (c *Client) InsertItems(ctx context.Context, _ string, items []order.Item) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/order-items",
		body:   wire.Items(items),
		want:   http.StatusCreated,
	})
}

// DeleteOrder removes a pending order that has no items.
func (c *Client) DeleteOrder(ctx context.Context, _, orderID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/orders/" + url.PathEscape(orderID),
		want:   http.StatusNoContent,
	})
}

// PlaceOrder writes the header and items in one server-side transaction.
func (c *Client) PlaceOrder(ctx context.Context, _ string, items []order.Item, idempotencyKey string) (*order.Order, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	var out wire.Order
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/checkout",
		header: header,
		body:   wire.Items(items),
		want:   http.StatusCreated,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	o := order.Order(out)
	return &o, nil
}

// ListByCustomer lists the token owner's recent orders.
func (c *Client) ListByCustomer(ctx context.Context, _ string, limit int) ([]order.Order, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out wire.Orders
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/orders",
		query:  q,
		want:   http.StatusOK,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

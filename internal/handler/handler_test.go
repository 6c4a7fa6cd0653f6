package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
)

// --- Mock implementations ---

const (
	validToken = "good-token"
	customerA  = "11111111-1111-1111-1111-111111111111"
)

type mockAuth struct {
	emails map[string]string
}

func (m *mockAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	if email != "bar@example.com" || password != "secret" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Session{
		AccessToken: validToken,
		CustomerID:  customerA,
		ExpiresAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (m *mockAuth) CustomerEmail(_ context.Context, number string) (string, error) {
	email, ok := m.emails[number]
	if !ok {
		return "", auth.ErrCustomerNotFound
	}
	return email, nil
}

func (m *mockAuth) Authenticate(token string) (string, error) {
	if token != validToken {
		return "", auth.ErrUnauthorized
	}
	return customerA, nil
}

type mockProducts struct {
	products []product.Product
	err      error
	lastCust string
}

func (m *mockProducts) ListForCustomer(_ context.Context, customerID string) ([]product.Product, error) {
	m.lastCust = customerID
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m *mockProducts) GetForCustomer(_ context.Context, customerID, productID string) (*product.Product, error) {
	m.lastCust = customerID
	for _, p := range m.products {
		if p.ID == productID {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

type mockOrders struct {
	mu sync.Mutex

	createErr error
	insertErr error
	deleteErr error
	placeErr  error

	inserted  []order.Item
	deleted   []string
	placeKeys []string
	lastLimit int
	orders    []order.Order
}

var created = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func (m *mockOrders) CreateOrder(_ context.Context, customerID string) (*order.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &order.Order{ID: "o-1", CustomerID: customerID, Status: order.StatusPending, CreatedAt: created}, nil
}

func (m *mockOrders) InsertItems(_ context.Context, _ string, items []order.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, items...)
	return nil
}

func (m *mockOrders) DeleteOrder(_ context.Context, _, orderID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, orderID)
	return nil
}

func (m *mockOrders) PlaceOrder(_ context.Context, customerID string, items []order.Item, key string) (*order.Order, error) {
	m.placeKeys = append(m.placeKeys, key)
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	for i := range items {
		items[i].OrderID = "o-2"
	}
	return &order.Order{ID: "o-2", CustomerID: customerID, Status: order.StatusPending, CreatedAt: created, Items: items}, nil
}

func (m *mockOrders) ListByCustomer(_ context.Context, _ string, limit int) ([]order.Order, error) {
	m.lastLimit = limit
	return m.orders, nil
}

// --- Helpers ---

type fixture struct {
	products *mockProducts
	orders   *mockOrders
	mux      *http.ServeMux
}

func newFixture() *fixture {
	price := int64(500)
	f := &fixture{
		products: &mockProducts{products: []product.Product{
			{ID: "p1", SKU: "GIN-70", Name: "Gin 70cl", PricePence: &price},
			{ID: "p2", SKU: "RUM-70", Name: "Rum 70cl"},
		}},
		orders: &mockOrders{},
		mux:    http.NewServeMux(),
	}
	h := NewHandler(HandlerConfig{MaxListLimit: 100},
		&mockAuth{emails: map[string]string{"C-1001": "bar@example.com"}},
		f.products, f.orders,
	)
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+validToken)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "success",
			body:     `{"email":"bar@example.com","password":"secret"}`,
			wantCode: http.StatusOK,
			wantBody: `{"access_token":"good-token","customer_id":"` + customerA + `","expires_at":"2026-01-02T03:04:05Z"}`,
		},
		{
			name:     "wrong password",
			body:     `{"email":"bar@example.com","password":"nope"}`,
			wantCode: http.StatusUnauthorized,
			wantBody: `{"code":401,"message":"invalid email or password"}`,
		},
		{
			name:     "malformed body",
			body:     `{"email":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty body",
			body:     ``,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestCustomerEmail(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{"found", `{"customer_number":"C-1001"}`, http.StatusOK, `{"email":"bar@example.com"}`},
		{"unknown", `{"customer_number":"C-9"}`, http.StatusNotFound, `{"code":404,"message":"customer not found"}`},
		{"missing", `{}`, http.StatusBadRequest, `{"code":400,"message":"customer_number is required"}`},
		{"blank", `{"customer_number":"  "}`, http.StatusBadRequest, `{"code":400,"message":"customer_number is required"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := httptest.NewRequest(http.MethodPost, "/api/customer-email", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + validToken},
		{"empty token", "Bearer "},
		{"bad token", "Bearer forged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			assert.Empty(t, f.products.lastCust, "repository must not be reached")
		})
	}
}

func TestListProducts(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/products", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, customerA, f.products.lastCust)
	assert.JSONEq(t, `[
		{"id":"p1","sku":"GIN-70","name":"Gin 70cl","description":"","category":"","unit":"","price_pence":500},
		{"id":"p2","sku":"RUM-70","name":"Rum 70cl","description":"","category":"","unit":"","price_pence":null}
	]`, rec.Body.String())
}

func TestListProducts_Empty(t *testing.T) {
	f := newFixture()
	f.products.products = nil

	rec := f.do(t, http.MethodGet, "/api/products", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListProducts_BackendError(t *testing.T) {
	f := newFixture()
	f.products.err = errors.New("connection refused")

	rec := f.do(t, http.MethodGet, "/api/products", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, rec.Body.String())
}

func TestGetProduct(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/products/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sku":"GIN-70"`)

	rec = f.do(t, http.MethodGet, "/api/products/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"product not found"}`, rec.Body.String())
}

func TestCreateOrder(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/orders", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"o-1","customer_id":"`+customerA+`","status":"pending","created_at":"2026-05-01T12:00:00Z","items":[]}`, rec.Body.String())
}

func TestDeleteOrder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"not found", order.ErrNotFound, http.StatusNotFound},
		{"has items", order.ErrNotEmpty, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.deleteErr = tt.err

			rec := f.do(t, http.MethodDelete, "/api/orders/o-9", "")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.err == nil {
				assert.Equal(t, []string{"o-9"}, f.orders.deleted)
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestInsertItems(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "success",
			body:     `{"items":[{"order_id":"o-1","product_id":"p1","qty":2,"unit_price_pence":500}]}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "empty",
			body:     `{"items":[]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "items required",
		},
		{
			name:     "missing order id",
			body:     `{"items":[{"product_id":"p1","qty":1,"unit_price_pence":500}]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "items[0]: order_id is required",
		},
		{
			name:     "zero qty",
			body:     `{"items":[{"order_id":"o-1","product_id":"p1","qty":0,"unit_price_pence":500}]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "items[0]: qty must be at least 1",
		},
		{
			name:     "qty above max",
			body:     `{"items":[{"order_id":"o-1","product_id":"p1","qty":10000,"unit_price_pence":500}]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "items[0]: qty must be at most 9999",
		},
		{
			name:     "qty beyond int32",
			body:     `{"items":[{"order_id":"o-1","product_id":"p1","qty":4294967297,"unit_price_pence":500}]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "items[0]: qty must be at most 9999",
		},
		{
			name:     "foreign order",
			body:     `{"items":[{"order_id":"o-x","product_id":"p1","qty":1,"unit_price_pence":500}]}`,
			err:      order.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantMsg:  "order not found",
		},
		{
			name: "constraint violation",
			body: `{"items":[{"order_id":"o-1","product_id":"p1","qty":1,"unit_price_pence":500}]}`,
			err: errors.Wrap(&pgconn.PgError{
				Code:    "23503",
				Message: `insert or update on table "order_items" violates foreign key constraint "order_items_product_id_fkey"`,
			}, "insert items"),
			wantCode: http.StatusConflict,
			wantMsg:  `insert or update on table "order_items" violates foreign key constraint "order_items_product_id_fkey"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.insertErr = tt.err

			rec := f.do(t, http.MethodPost, "/api/order-items", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, rec.Body.String(), tt.wantMsg)
			}
			if tt.wantCode == http.StatusBadRequest {
				assert.Empty(t, f.orders.inserted, "rejected before the store")
			}
			if tt.wantCode == http.StatusCreated {
				require.Len(t, f.orders.inserted, 1)
				assert.Equal(t, order.Item{OrderID: "o-1", ProductID: "p1", Qty: 2, UnitPricePence: 500}, f.orders.inserted[0])
			}
		})
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture()
	body := `{"items":[{"product_id":"p1","qty":2,"unit_price_pence":500},{"product_id":"p2","qty":1,"unit_price_pence":1299}]}`

	rec := f.do(t, http.MethodPost, "/api/checkout", body, "Idempotency-Key", "key-1")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"key-1"}, f.orders.placeKeys)
	assert.Contains(t, rec.Body.String(), `"id":"o-2"`)
	assert.Contains(t, rec.Body.String(), `"order_id":"o-2"`)
}

func TestPlaceOrder_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		key      string
		err      error
		wantCode int
	}{
		{"no items", `{"items":[]}`, "", nil, http.StatusBadRequest},
		{"negative price", `{"items":[{"product_id":"p1","qty":1,"unit_price_pence":-1}]}`, "", nil, http.StatusBadRequest},
		{"qty beyond int32", `{"items":[{"product_id":"p1","qty":4294967297,"unit_price_pence":1}]}`, "", nil, http.StatusBadRequest},
		{"long key", `{"items":[{"product_id":"p1","qty":1,"unit_price_pence":1}]}`, strings.Repeat("k", 256), nil, http.StatusBadRequest},
		{
			"duplicate product",
			`{"items":[{"product_id":"p1","qty":1,"unit_price_pence":1},{"product_id":"p1","qty":1,"unit_price_pence":1}]}`,
			"",
			&pgconn.PgError{Code: "23505", Message: "duplicate product in order"},
			http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.placeErr = tt.err

			rec := f.do(t, http.MethodPost, "/api/checkout", tt.body, "Idempotency-Key", tt.key)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusBadRequest {
				assert.Empty(t, f.orders.placeKeys, "rejected before the store")
			}
		})
	}
}

func TestListOrders(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"", http.StatusOK, order.DefaultListLimit},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=100", http.StatusOK, 100},
		{"?limit=101", http.StatusBadRequest, 0},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := newFixture()
			f.orders.orders = []order.Order{{
				ID: "o-1", CustomerID: customerA, Status: order.StatusPending, CreatedAt: created,
				Items: []order.Item{{OrderID: "o-1", ProductID: "p1", Qty: 1, UnitPricePence: 500, ProductName: "Gin 70cl", SKU: "GIN-70"}},
			}}

			rec := f.do(t, http.MethodGet, "/api/orders"+tt.query, "")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLimit, f.orders.lastLimit)
			if tt.wantCode == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"product_name":"Gin 70cl"`)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
		{"wrapped not found", errors.Wrap(order.ErrNotFound, "delete"), http.StatusNotFound, "order not found"},
		{"data exception", &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}, http.StatusBadRequest, "invalid input syntax for type uuid"},
		{"rls violation", &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}, http.StatusConflict, "new row violates row-level security policy"},
		{"other database error", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, http.StatusInternalServerError, "internal error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

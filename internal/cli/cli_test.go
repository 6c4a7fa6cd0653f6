package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/client"
	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
	"github.com/galadrinks/storefront/internal/handler"
	"github.com/galadrinks/storefront/internal/storage/kv"
)

// --- Mock implementations ---

const (
	testToken    = "tok"
	testCustomer = "33333333-3333-3333-3333-333333333333"
)

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	if email != "bar@example.com" || password != "secret" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Session{
		AccessToken: testToken,
		CustomerID:  testCustomer,
		ExpiresAt:   time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (fakeAuth) CustomerEmail(_ context.Context, number string) (string, error) {
	if number != "C-1001" {
		return "", auth.ErrCustomerNotFound
	}
	return "bar@example.com", nil
}

func (fakeAuth) Authenticate(token string) (string, error) {
	if token != testToken {
		return "", auth.ErrUnauthorized
	}
	return testCustomer, nil
}

type fakeProducts []product.Product

func (f fakeProducts) ListForCustomer(context.Context, string) ([]product.Product, error) {
	return f, nil
}

func (f fakeProducts) GetForCustomer(_ context.Context, _, id string) (*product.Product, error) {
	for _, p := range f {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

// fakeOrders keeps orders in memory. PlaceOrder is all or nothing.
type fakeOrders struct {
	mu        sync.Mutex
	seq       int
	orders    []*order.Order
	keys      []string
	insertErr error
}

func (f *fakeOrders) CreateOrder(_ context.Context, customerID string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	o := &order.Order{
		ID:         fmt.Sprintf("o-%d", f.seq),
		CustomerID: customerID,
		Status:     order.StatusPending,
		CreatedAt:  time.Date(2026, 6, 1, 12, f.seq, 0, 0, time.UTC),
	}
	f.orders = append(f.orders, o)
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) InsertItems(_ context.Context, _ string, items []order.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, it := range items {
		o := f.find(it.OrderID)
		if o == nil {
			return order.ErrNotFound
		}
		o.Items = append(o.Items, it)
	}
	return nil
}

func (f *fakeOrders) DeleteOrder(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.orders {
		if o.ID == id {
			if len(o.Items) > 0 {
				return order.ErrNotEmpty
			}
			f.orders = append(f.orders[:i], f.orders[i+1:]...)
			return nil
		}
	}
	return order.ErrNotFound
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, customerID string, items []order.Item, key string) (*order.Order, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()

	o, err := f.CreateOrder(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].OrderID = o.ID
	}
	if err := f.InsertItems(ctx, customerID, items); err != nil {
		_ = f.DeleteOrder(ctx, customerID, o.ID)
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (f *fakeOrders) ListByCustomer(context.Context, string, int) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]order.Order, 0, len(f.orders))
	for i := len(f.orders) - 1; i >= 0; i-- {
		out = append(out, *f.orders[i])
	}
	return out, nil
}

func (f *fakeOrders) find(id string) *order.Order {
	for _, o := range f.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// --- Helpers ---

type harness struct {
	t      *testing.T
	url    string
	store  *kv.Memory
	orders *fakeOrders
	cfg    Config
	stdin  string
}

func pence(v int64) *int64 { return &v }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		store:  kv.NewMemory(),
		orders: &fakeOrders{},
		cfg: Config{
			Timeout:  5 * time.Second,
			DeviceID: "test-device",
			Store:    kv.Config{Driver: kv.DriverMemory},
			Checkout: CheckoutConfig{Mode: "atomic", Compensate: true},
		},
	}

	mux := http.NewServeMux()
	handler.NewHandler(handler.HandlerConfig{}, fakeAuth{}, fakeProducts{
		{ID: "p1", SKU: "GIN-70", Name: "Gin 70cl", Unit: "70cl", PricePence: pence(500)},
		{ID: "p2", SKU: "TON-24", Name: "Tonic x24", Unit: "case", PricePence: pence(1299)},
		{ID: "p3", SKU: "RUM-70", Name: "Rum 70cl", Unit: "70cl"},
	}, h.orders).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	h.url = srv.URL
	h.cfg.APIURL = srv.URL

	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCommand(func(ctx context.Context, _ *RootOptions) (*App, error) {
		api, err := client.New(client.Config{BaseURL: h.cfg.APIURL, Timeout: h.cfg.Timeout})
		if err != nil {
			return nil, err
		}
		return NewApp(ctx, &h.cfg, zap.NewNop(), h.store, api), nil
	})

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(h.stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "storefront %s", strings.Join(args, " "))
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun("login", "--email", "bar@example.com", "--password", "secret")
}

func (h *harness) fillCart() {
	h.t.Helper()
	h.mustRun("cart", "add", "p1")
	h.mustRun("cart", "add", "p1")
	h.mustRun("cart", "add", "p2")
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

// --- Tests ---

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "storefront", cmd.Use)

	for _, name := range []string{"login", "logout", "products", "cart", "checkout", "orders"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("login", "--email", "bar@example.com", "--password", "nope")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Empty(t, out)
	_, err = h.store.Get(context.Background(), sessionKey)
	require.ErrorIs(t, err, kv.ErrNotFound)

	out = h.mustRun("login", "--email", "bar@example.com", "--password", "secret")
	assert.Equal(t, "Signed in as bar@example.com.\n", out)
	_, err = h.store.Get(context.Background(), sessionKey)
	require.NoError(t, err)
}

func TestLogin_CustomerNumberAndStdin(t *testing.T) {
	h := newHarness(t)
	h.stdin = "secret\n"

	out := h.mustRun("login", "--customer-number", "C-1001")
	assert.Equal(t, "Signed in as bar@example.com.\n", out)

	_, err := h.run("login", "--customer-number", "C-404")
	require.ErrorIs(t, err, auth.ErrCustomerNotFound)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login()

	assert.Equal(t, "Signed out.\n", h.mustRun("logout"))

	_, err := h.run("products")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestExpiredSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	raw, err := h.store.Get(context.Background(), sessionKey)
	require.NoError(t, err)
	expired := strings.Replace(raw, "2099-01-01", "2001-01-01", 1)
	require.NoError(t, h.store.Set(context.Background(), sessionKey, expired))

	_, err = h.run("products")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestProducts(t *testing.T) {
	h := newHarness(t)
	h.login()

	golden(t).Assert(t, "products", []byte(h.mustRun("products")))
}

func TestCart(t *testing.T) {
	h := newHarness(t)
	h.login()

	assert.Equal(t, "Your cart is empty. Browse products with `storefront products`.\n", h.mustRun("cart"))

	assert.Equal(t, "Added Gin 70cl (£5.00) to the cart.\n", h.mustRun("cart", "add", "p1"))
	h.mustRun("cart", "add", "p1")
	h.mustRun("cart", "add", "p2")

	out := h.mustRun("cart", "add", "p3")
	assert.Contains(t, out, "No price set")

	golden(t).Assert(t, "cart", []byte(h.mustRun("cart")))
}

func TestCart_LineCommands(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fillCart()

	assert.Contains(t, h.mustRun("cart", "set", "2", "4"), "Subtotal: £61.96")
	assert.Contains(t, h.mustRun("cart", "inc", "1"), "Subtotal: £66.96")
	assert.Contains(t, h.mustRun("cart", "dec", "2"), "Subtotal: £53.97")
	assert.Contains(t, h.mustRun("cart", "remove", "1"), "Subtotal: £38.97")

	_, err := h.run("cart", "inc", "9")
	assert.EqualError(t, err, "cart line 8 out of range (cart has 1 lines)")

	_, err = h.run("cart", "set", "1", "many")
	assert.EqualError(t, err, `invalid quantity "many"`)

	assert.Equal(t, "Cart cleared.\n", h.mustRun("cart", "clear"))
	assert.Contains(t, h.mustRun("cart"), "Your cart is empty.")
}

func TestCart_AddRequiresSignIn(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("cart", "add", "p1")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, err := h.run("cart", "add", "nope")
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestCheckout(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fillCart()

	out := h.mustRun("checkout")
	assert.Equal(t, "Order placed! Order o-1, total £22.99.\nContinue shopping with `storefront products`.\n", out)

	assert.Contains(t, h.mustRun("cart"), "Your cart is empty.")
	_, err := h.store.Get(context.Background(), checkoutKeyKey)
	require.ErrorIs(t, err, kv.ErrNotFound)
	require.Len(t, h.orders.keys, 1)
	assert.NotEmpty(t, h.orders.keys[0])

	golden(t).Assert(t, "orders", []byte(h.mustRun("orders")))
}

func TestCheckout_FailureKeepsCartAndKey(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fillCart()
	before := h.mustRun("cart")

	h.orders.insertErr = errors.New("constraint violated")
	_, err := h.run("checkout")
	require.EqualError(t, err, "internal error")
	assert.Equal(t, before, h.mustRun("cart"))

	// The retry reuses the pending key.
	h.orders.insertErr = nil
	h.mustRun("checkout")
	require.Len(t, h.orders.keys, 2)
	assert.Equal(t, h.orders.keys[0], h.orders.keys[1])
}

func TestCheckout_CartChangeDropsKey(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.fillCart()

	h.orders.insertErr = errors.New("boom")
	_, err := h.run("checkout")
	require.Error(t, err)
	_, err = h.store.Get(context.Background(), checkoutKeyKey)
	require.NoError(t, err)

	h.mustRun("cart", "inc", "1")
	_, err = h.store.Get(context.Background(), checkoutKeyKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCheckout_TwoStep(t *testing.T) {
	h := newHarness(t)
	h.cfg.Checkout.Mode = "two-step"
	h.login()
	h.fillCart()

	out := h.mustRun("checkout")
	assert.Contains(t, out, "Order placed! Order o-1, total £22.99.")
	assert.Empty(t, h.orders.keys, "two-step never calls the atomic endpoint")
	_, err := h.store.Get(context.Background(), checkoutKeyKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCheckout_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("checkout")
	assert.ErrorContains(t, err, "your cart is empty")

	h.login()
	h.fillCart()
	h.mustRun("logout")

	_, err = h.run("checkout")
	assert.ErrorIs(t, err, errNotSignedIn)
	assert.Contains(t, h.mustRun("cart"), "Subtotal: £22.99")
}

func TestOrders_Empty(t *testing.T) {
	h := newHarness(t)
	h.login()

	assert.Equal(t, "No orders yet.\n", h.mustRun("orders"))
}

func TestPounds(t *testing.T) {
	tests := []struct {
		pence int64
		want  string
	}{
		{0, "£0.00"},
		{5, "£0.05"},
		{99, "£0.99"},
		{2299, "£22.99"},
		{100000, "£1,000.00"},
		{123456789, "£1,234,567.89"},
		{-250, "-£2.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pounds(tt.pence), "pounds(%d)", tt.pence)
	}
}

// Package checkout turns a cart into a persisted order and reconciles the
// local cart with the outcome.
package checkout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/domain/cart"
	"github.com/galadrinks/storefront/internal/domain/order"
)

// Mode selects how an order is written to the backend.
type Mode string

const (
	// ModeAtomic writes header and items in one backend call when the backend
	// supports it, falling back to ModeTwoStep otherwise.
	ModeAtomic Mode = "atomic"
	// ModeTwoStep writes the header, then the items.
	ModeTwoStep Mode = "two-step"
)

// ParseMode parses a configured mode. Empty means ModeAtomic.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAtomic:
		return ModeAtomic, nil
	case ModeTwoStep:
		return ModeTwoStep, nil
	default:
		return "", errors.Errorf("unknown checkout mode %q", s)
	}
}

// Cart is the part of the cart store the coordinator needs.
type Cart interface {
	Clear(ctx context.Context) error
}

// Notifier is told about every successfully placed order.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *order.Order)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, o *order.Order)

func (f NotifierFunc) OrderPlaced(ctx context.Context, o *order.Order) { f(ctx, o) }

// Request is a single placement.
type Request struct {
	Lines      []cart.Line
	CustomerID string
	// IdempotencyKey is passed to atomic placements. A new key is generated
	// when empty.
	IdempotencyKey string
}

// Result is a successful placement.
type Result struct {
	Order *order.Order
	// CartCleared is false when the order was placed but the local cart
	// could not be emptied.
	CartCleared bool
}

// Options configures a Coordinator. The zero value places orders atomically
// when possible and compensates orphaned headers.
type Options struct {
	Mode                Mode
	DisableCompensation bool
	// CompensationTimeout bounds the orphan delete, which runs even when the
	// placement context is already cancelled. Defaults to 10s.
	CompensationTimeout time.Duration

	Notifier       Notifier
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (o *Options) setDefaults() {
	if o.Mode == "" {
		o.Mode = ModeAtomic
	}
	if o.CompensationTimeout <= 0 {
		o.CompensationTimeout = 10 * time.Second
	}
	if o.Notifier == nil {
		o.Notifier = NotifierFunc(func(context.Context, *order.Order) {})
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
}

// Coordinator places orders. At most one placement runs at a time.
type Coordinator struct {
	orders order.Writer
	placer order.AtomicPlacer // nil unless atomic mode and supported
	cart   Cart

	compensate          bool
	compensationTimeout time.Duration
	notifier            Notifier
	lg                  *zap.Logger
	tracer              trace.Tracer

	placed  metric.Int64Counter
	failed  metric.Int64Counter
	partial metric.Int64Counter

	busy atomic.Bool
}

// NewCoordinator creates a Coordinator writing to orders and clearing c on
// success.
func NewCoordinator(orders order.Writer, c Cart, opts Options) (*Coordinator, error) {
	opts.setDefaults()

	co := &Coordinator{
		orders:              orders,
		cart:                c,
		compensate:          !opts.DisableCompensation,
		compensationTimeout: opts.CompensationTimeout,
		notifier:            opts.Notifier,
		lg:                  opts.Logger,
		tracer:              opts.TracerProvider.Tracer("storefront/checkout"),
	}
	if opts.Mode == ModeAtomic {
		if p, ok := orders.(order.AtomicPlacer); ok {
			co.placer = p
		}
	}

	meter := opts.MeterProvider.Meter("storefront/checkout")
	var err error
	if co.placed, err = meter.Int64Counter("checkout.orders.placed",
		metric.WithDescription("Orders placed successfully"),
	); err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	if co.failed, err = meter.Int64Counter("checkout.orders.failed",
		metric.WithDescription("Placements that failed"),
	); err != nil {
		return nil, errors.Wrap(err, "failed counter")
	}
	if co.partial, err = meter.Int64Counter("checkout.orders.partial",
		metric.WithDescription("Placements that left an order header without items"),
	); err != nil {
		return nil, errors.Wrap(err, "partial counter")
	}

	return co, nil
}

// Atomic reports whether placements use the single-call backend path.
func (c *Coordinator) Atomic() bool {
	return c.placer != nil
}

// PlaceOrder writes req as an order. On success the cart is cleared and the
// notifier is called; on any failure the cart is left untouched.
func (c *Coordinator) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer c.busy.Store(false)

	ctx, span := c.tracer.Start(ctx, "checkout.PlaceOrder",
		trace.WithAttributes(
			attribute.String("customer.id", req.CustomerID),
			attribute.Int("cart.lines", len(req.Lines)),
			attribute.Bool("checkout.atomic", c.Atomic()),
		),
	)
	defer span.End()

	lg := c.lg.With(zap.String("customer_id", req.CustomerID))

	var (
		o   *order.Order
		err error
	)
	if c.placer != nil {
		o, err = c.placeAtomic(ctx, req)
	} else {
		o, err = c.placeTwoStep(ctx, lg, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordFailure(ctx, lg, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	res := &Result{Order: o, CartCleared: true}
	if err := c.cart.Clear(ctx); err != nil {
		// The order exists; the user must not be told it failed.
		lg.Error("Order placed but cart not cleared", zap.String("order_id", o.ID), zap.Error(err))
		res.CartCleared = false
	}

	c.placed.Add(ctx, 1)
	lg.Info("Order placed", zap.String("order_id", o.ID), zap.Int("items", len(o.Items)))
	c.notifier.OrderPlaced(ctx, o)

	return res, nil
}

func (c *Coordinator) placeAtomic(ctx context.Context, req Request) (*order.Order, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}
	o, err := c.placer.PlaceOrder(ctx, req.CustomerID, buildItems("", req.Lines), key)
	if err != nil {
		return nil, &WriteError{Step: StepPlaceOrder, Err: err}
	}
	return o, nil
}

func (c *Coordinator) placeTwoStep(ctx context.Context, lg *zap.Logger, req Request) (*order.Order, error) {
	o, err := c.orders.CreateOrder(ctx, req.CustomerID)
	if err != nil {
		return nil, &WriteError{Step: StepCreateOrder, Err: err}
	}

	items := buildItems(o.ID, req.Lines)
	if err := c.orders.InsertItems(ctx, req.CustomerID, items); err != nil {
		return nil, c.compensateOrphan(ctx, lg, req.CustomerID, o.ID, err)
	}

	o.Items = items
	return o, nil
}

// compensateOrphan deletes the header left behind by a failed item insert
// and builds the error describing what remains on the backend.
func (c *Coordinator) compensateOrphan(ctx context.Context, lg *zap.Logger, customerID, orderID string, cause error) error {
	if !c.compensate {
		return &PartialOrderError{OrderID: orderID, Err: cause}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.compensationTimeout)
	defer cancel()

	if err := c.orders.DeleteOrder(ctx, customerID, orderID); err != nil {
		return &PartialOrderError{OrderID: orderID, Err: cause, CompensationErr: err}
	}
	lg.Warn("Deleted orphaned order header", zap.String("order_id", orderID), zap.Error(cause))
	return &WriteError{Step: StepInsertItems, Err: cause, Compensated: true}
}

func (c *Coordinator) recordFailure(ctx context.Context, lg *zap.Logger, err error) {
	var (
		partialErr *PartialOrderError
		writeErr   *WriteError
	)
	switch {
	case errors.As(err, &partialErr):
		c.partial.Add(ctx, 1)
		c.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("step", string(StepInsertItems))))
		lg.Error("Order header left without items",
			zap.String("order_id", partialErr.OrderID),
			zap.Error(partialErr.Err),
			zap.NamedError("compensation_error", partialErr.CompensationErr),
		)
	case errors.As(err, &writeErr):
		c.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("step", string(writeErr.Step))))
		lg.Warn("Order placement failed",
			zap.String("step", string(writeErr.Step)),
			zap.Bool("compensated", writeErr.Compensated),
			zap.Error(writeErr.Err),
		)
	default:
		c.failed.Add(ctx, 1)
		lg.Warn("Order placement failed", zap.Error(err))
	}
}

func validate(req Request) error {
	if len(req.Lines) == 0 {
		return ErrEmptyCart
	}
	if req.CustomerID == "" {
		return ErrNotAuthenticated
	}
	for i, l := range req.Lines {
		switch {
		case l.ProductID == "":
			return &InvalidLineError{Index: i, Reason: "missing product id"}
		case l.Qty < 1:
			return &InvalidLineError{Index: i, ProductID: l.ProductID, Reason: "quantity must be at least 1"}
		case l.Qty > order.MaxQty:
			return &InvalidLineError{Index: i, ProductID: l.ProductID, Reason: fmt.Sprintf("quantity must be at most %d", order.MaxQty)}
		case l.PricePence < 0:
			return &InvalidLineError{Index: i, ProductID: l.ProductID, Reason: "negative price"}
		}
	}
	return nil
}

// buildItems copies quantity and the snapshotted price of every line.
func buildItems(orderID string, lines []cart.Line) []order.Item {
	items := make([]order.Item, len(lines))
	for i, l := range lines {
		items[i] = order.Item{
			OrderID:        orderID,
			ProductID:      l.ProductID,
			Qty:            l.Qty,
			UnitPricePence: l.PricePence,
			ProductName:    l.Name,
			SKU:            l.SKU,
		}
	}
	return items
}

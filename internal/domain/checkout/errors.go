package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Validation errors. They are returned before any backend call is made.
var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrInProgress is returned when a placement is already running on the
	// same coordinator.
	ErrInProgress = errors.New("checkout already in progress")
)

// Step names the backend write that failed.
type Step string

const (
	StepCreateOrder Step = "create_order"
	StepInsertItems Step = "insert_items"
	StepPlaceOrder  Step = "place_order"
)

// InvalidLineError reports a cart line that cannot become an order item.
type InvalidLineError struct {
	Index     int
	ProductID string
	Reason    string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("cart line %d (%s): %s", e.Index, e.ProductID, e.Reason)
}

// WriteError is a failed placement that left nothing behind on the backend:
// either the first write failed, or the orphaned header was deleted again
// (Compensated). Its message is the backend's message.
type WriteError struct {
	Step        Step
	Err         error
	Compensated bool
}

func (e *WriteError) Error() string {
	return e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// PartialOrderError is a failed placement that left an order header without
// items on the backend. CompensationErr is set when the delete was attempted
// and failed; it is nil when compensation is disabled.
type PartialOrderError struct {
	OrderID         string
	Err             error
	CompensationErr error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("%s (order %s was created without items)", e.Err, e.OrderID)
}

func (e *PartialOrderError) Unwrap() error {
	return e.Err
}

package client

import (
	"net/http"
	"strings"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
	"github.com/galadrinks/storefront/internal/wire"
)

// APIError is a non-2xx response. Its message is the server's message.
type APIError struct {
	Status  int
	Message string
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var werr wire.Error
	if err := wire.Unmarshal(body, &werr); err == nil && werr.Message != "" {
		e.Message = werr.Message
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		e.Message = text
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}

func (e *APIError) Error() string {
	return e.Message
}

// sentinels maps server messages back to the domain errors they came from.
var sentinels = []error{
	auth.ErrInvalidCredentials,
	auth.ErrUnauthorized,
	auth.ErrCustomerNotFound,
	product.ErrNotFound,
	order.ErrNotFound,
	order.ErrNotEmpty,
}

// Unwrap returns the domain error the server reported, so errors.Is works
// across the wire.
func (e *APIError) Unwrap() error {
	for _, s := range sentinels {
		if e.Message == s.Error() {
			return s
		}
	}
	if e.Status == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

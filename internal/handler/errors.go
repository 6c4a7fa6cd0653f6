package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
)

// mapError converts domain and database errors to an HTTP status and the
// message shown to the caller.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrCustomerNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, order.ErrNotEmpty):
		return http.StatusConflict, err.Error()
	}

	// Rejections by the database carry a message meant for the caller, like
	// a violated constraint.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), pgErr.Code == "42501":
			return http.StatusConflict, pgErr.Message
		case strings.HasPrefix(pgErr.Code, "22"):
			return http.StatusBadRequest, pgErr.Message
		}
	}

	return http.StatusInternalServerError, "internal error"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Internal error", zap.Error(err))
	}
	writeError(w, r, status, message)
}

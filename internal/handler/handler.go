// Package handler serves the storefront HTTP API.
package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/galadrinks/storefront/internal/domain/auth"
	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
	"github.com/galadrinks/storefront/internal/wire"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Authenticator checks credentials and bearer tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	CustomerEmail(ctx context.Context, customerNumber string) (string, error)
	Authenticate(token string) (string, error)
}

// OrderStore is the full order backend exposed over HTTP.
type OrderStore interface {
	order.Writer
	order.AtomicPlacer
	order.Reader
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxListLimit caps the limit query parameter of the order history.
	MaxListLimit int
}

// Handler serves the storefront API, delegating to the domain repositories.
type Handler struct {
	auth     Authenticator
	products product.Repository
	orders   OrderStore

	maxListLimit int
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	authn Authenticator,
	products product.Repository,
	orders OrderStore,
) *Handler {
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = 200
	}
	return &Handler{
		auth:         authn,
		products:     products,
		orders:       orders,
		maxListLimit: cfg.MaxListLimit,
	}
}

// Register adds all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/customer-email", h.CustomerEmail)

	mux.Handle("GET /api/products", h.authenticated(h.ListProducts))
	mux.Handle("GET /api/products/{id}", h.authenticated(h.GetProduct))
	mux.Handle("POST /api/orders", h.authenticated(h.CreateOrder))
	mux.Handle("DELETE /api/orders/{id}", h.authenticated(h.DeleteOrder))
	mux.Handle("POST /api/order-items", h.authenticated(h.InsertItems))
	mux.Handle("POST /api/checkout", h.authenticated(h.PlaceOrder))
	mux.Handle("GET /api/orders", h.authenticated(h.ListOrders))
}

// authenticated requires a valid bearer token and puts the customer id in
// the request context.
func (h *Handler) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		customerID, err := h.auth.Authenticate(token)
		if err != nil {
			zctx.From(r.Context()).Debug("Rejected token", zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
			return
		}

		ctx := auth.WithCustomer(r.Context(), customerID)
		ctx = zctx.With(ctx, zap.String("customer_id", customerID))
		next(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// customerID returns the authenticated customer. Routes behind
// authenticated always have one.
func customerID(r *http.Request) string {
	id, _ := auth.CustomerFromContext(r.Context())
	return id
}

func readBody(w http.ResponseWriter, r *http.Request, v wire.Decoder) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if err := wire.Unmarshal(data, v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v wire.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Status is already sent; a write error means the client went away.
	_, _ = w.Write(wire.Marshal(v))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.Int("status", status),
			zap.String("message", message),
		)
	}
	writeJSON(w, status, wire.Error{Code: status, Message: message})
}

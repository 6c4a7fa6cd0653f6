package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/wire"
)

// maxIdempotencyKeyLen bounds the Idempotency-Key header.
const maxIdempotencyKeyLen = 255

// CreateOrder inserts a pending order header for the caller and returns it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CreateOrder(r.Context(), customerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.Order(*o))
}

// DeleteOrder removes one of the caller's pending orders that has no items.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), customerID(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertItems bulk inserts items into the caller's orders.
func (h *Handler) InsertItems(w http.ResponseWriter, r *http.Request) {
	var items wire.Items
	if !readBody(w, r, &items) {
		return
	}
	if msg := validateItems(items, true); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	if err := h.orders.InsertItems(r.Context(), customerID(r), items); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, items)
}

// PlaceOrder writes an order header and its items in one transaction.
// Requests repeating an Idempotency-Key get the original order back.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if len(key) > maxIdempotencyKeyLen {
		writeError(w, r, http.StatusBadRequest, "Idempotency-Key is too long")
		return
	}

	var items wire.Items
	if !readBody(w, r, &items) {
		return
	}
	if msg := validateItems(items, false); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), customerID(r), items, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.Order(*o))
}

// ListOrders returns the caller's most recent orders with their items.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := order.DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > h.maxListLimit {
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("limit must be between 1 and %d", h.maxListLimit))
			return
		}
		limit = n
	}

	orders, err := h.orders.ListByCustomer(r.Context(), customerID(r), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Orders(orders))
}

// validateItems returns a message describing the first invalid item.
func validateItems(items []order.Item, needOrderID bool) string {
	if len(items) == 0 {
		return "items required"
	}
	for i, it := range items {
		switch {
		case needOrderID && it.OrderID == "":
			return fmt.Sprintf("items[%d]: order_id is required", i)
		case it.Qty < 1:
			return fmt.Sprintf("items[%d]: qty must be at least 1", i)
		case it.Qty > order.MaxQty:
			return fmt.Sprintf("items[%d]: qty must be at most %d", i, order.MaxQty)
		case it.UnitPricePence < 0:
			return fmt.Sprintf("items[%d]: unit_price_pence must not be negative", i)
		}
	}
	return ""
}

package handler

import (
	"net/http"

	"github.com/galadrinks/storefront/internal/wire"
)

// ListProducts returns the catalog with the caller's prices.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListForCustomer(r.Context(), customerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Products(products))
}

// GetProduct returns one product with the caller's price.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetForCustomer(r.Context(), customerID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Product(*p))
}

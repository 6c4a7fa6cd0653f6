package handler

import (
	"net/http"
	"strings"

	"github.com/galadrinks/storefront/internal/wire"
)

// Login exchanges email and password for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req wire.Login
	if !readBody(w, r, &req) {
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Session(*sess))
}

// CustomerEmail resolves an account number to the email used to log in.
func (h *Handler) CustomerEmail(w http.ResponseWriter, r *http.Request) {
	var req wire.CustomerNumber
	if !readBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CustomerNumber) == "" {
		writeError(w, r, http.StatusBadRequest, "customer_number is required")
		return
	}

	email, err := h.auth.CustomerEmail(r.Context(), req.CustomerNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.Email{Email: email})
}

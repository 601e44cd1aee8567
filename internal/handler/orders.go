package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hcbookstore/storefront/internal/domain/auth"
	"github.com/hcbookstore/storefront/internal/domain/order"
)

const defaultOrderPageSize = 10

// ListOrders returns a page of the signed-in customer's orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	size, err := queryInt(r, "size", defaultOrderPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := sessionFrom(r).WithToken(r.Context())
	if _, ok := auth.TokenFrom(ctx); !ok {
		h.fail(w, r, order.ErrAuthRequired)
		return
	}
	p, err := h.deps.Orders.ListOrders(ctx, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetOrder returns one order of the signed-in customer.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, notFound("order not found"))
		return
	}

	ctx := sessionFrom(r).WithToken(r.Context())
	if _, ok := auth.TokenFrom(ctx); !ok {
		h.fail(w, r, order.ErrAuthRequired)
		return
	}
	o, err := h.deps.Orders.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

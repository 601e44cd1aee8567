package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hcbookstore/storefront/internal/domain/cart"
	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/money"
)

type lineItemJSON struct {
	ID        string            `json:"id"`
	BookID    string            `json:"bookId"`
	Book      cart.BookSnapshot `json:"book"`
	Format    cart.Format       `json:"format"`
	Quantity  int               `json:"quantity"`
	UnitPrice money.VND         `json:"unitPrice"`
	Subtotal  money.VND         `json:"subtotal"`
}

type cartJSON struct {
	Items            []lineItemJSON `json:"items"`
	ItemCount        int            `json:"itemCount"`
	Subtotal         money.VND      `json:"subtotal"`
	ShippingEstimate money.VND      `json:"shippingEstimate"`
	Total            money.VND      `json:"total"`
	// Display strings in vi-VN format.
	SubtotalText string `json:"subtotalText"`
	TotalText    string `json:"totalText"`
}

func cartResponse(c cart.Cart) cartJSON {
	items := make([]lineItemJSON, len(c.Items))
	for i, li := range c.Items {
		items[i] = lineItemJSON{
			ID:        li.ID,
			BookID:    li.BookID,
			Book:      li.Book,
			Format:    li.Format,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
		}
	}
	return cartJSON{
		Items:            items,
		ItemCount:        c.ItemCount(),
		Subtotal:         c.Subtotal(),
		ShippingEstimate: c.ShippingEstimate,
		Total:            c.Total(),
		SubtotalText:     c.Subtotal().String(),
		TotalText:        c.Total().String(),
	}
}

func (h *Handler) countMutation(r *http.Request, op string) {
	h.mutations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("op", op)))
}

// GetCart returns the session cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse(sessionFrom(r).Cart.Snapshot()))
}

// ClearCart empties the session cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	s.Cart.Clear(r.Context())
	h.countMutation(r, "clear")
	writeJSON(w, http.StatusOK, cartResponse(s.Cart.Snapshot()))
}

type addItemRequest struct {
	BookCode string      `json:"bookCode"`
	Format   cart.Format `json:"format"`
	Quantity int         `json:"quantity"`
}

// AddItem adds a book to the cart at the catalog price of the format.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.BookCode == "" {
		h.fail(w, r, cart.ErrBookRequired)
		return
	}
	if !req.Format.Valid() {
		h.fail(w, r, cart.ErrInvalidFormat)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx := r.Context()
	book, err := h.deps.Catalog.GetBook(ctx, req.BookCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if book == nil {
		h.fail(w, r, notFound("book not found"))
		return
	}
	price, ok := editionPrice(book, req.Format)
	if !ok {
		h.fail(w, r, badRequest("this edition is not available"))
		return
	}

	s := sessionFrom(r)
	item, err := s.Cart.AddItem(ctx, cart.SnapshotOf(book), req.Format, req.Quantity, price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.countMutation(r, "add")

	writeJSON(w, http.StatusOK, struct {
		Item string   `json:"itemId"`
		Cart cartJSON `json:"cart"`
	}{item.ID, cartResponse(s.Cart.Snapshot())})
}

// editionPrice returns the catalog price of a format, or false when the
// edition is not sold.
func editionPrice(b *catalog.Book, f cart.Format) (money.VND, bool) {
	switch f {
	case cart.FormatPhysical:
		return b.PhysicalPrice, b.HasPhysicalEdition
	case cart.FormatDigital:
		return b.ElectronicPrice, b.HasElectronicEdition
	default:
		return 0, false
	}
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// UpdateItem sets the quantity of a line; zero or less removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.fail(w, r, badRequest("quantity required"))
		return
	}

	s := sessionFrom(r)
	if err := s.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.countMutation(r, "update")
	writeJSON(w, http.StatusOK, cartResponse(s.Cart.Snapshot()))
}

// RemoveItem removes a line. Unknown ids are ignored.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	s.Cart.RemoveItem(r.Context(), chi.URLParam(r, "id"))
	h.countMutation(r, "remove")
	writeJSON(w, http.StatusOK, cartResponse(s.Cart.Snapshot()))
}

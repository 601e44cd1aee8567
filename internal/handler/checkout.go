package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/session"
)

// GetAddress returns the address cascade, loading provinces and the saved
// selection on first use.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := s.PrepareAddress(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Address.Snapshot())
}

type selectRequest struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

// SelectAddress selects a value at one cascade level. The id (or code for
// wards) zero value clears the level.
func (h *Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	s := sessionFrom(r)
	if err := s.PrepareAddress(ctx); err != nil {
		h.fail(w, r, err)
		return
	}

	var err error
	switch level := chi.URLParam(r, "level"); level {
	case "province":
		err = s.Address.SelectProvince(ctx, req.ID)
	case "district":
		err = s.Address.SelectDistrict(ctx, req.ID)
	case "ward":
		err = s.Address.SelectWard(req.Code)
	case "service":
		err = s.Address.SelectService(req.ID)
	default:
		err = notFound("unknown address level " + level)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s.RememberAddress(ctx)
	writeJSON(w, http.StatusOK, s.Address.Snapshot())
}

type feeRequest struct {
	ShippingMethod checkout.ShippingMethod `json:"shippingMethod"`
}

type feeResponse struct {
	Quote checkout.Quote `json:"quote"`
	Cart  cartJSON       `json:"cart"`
}

// RecomputeFee refreshes the shipping estimate for the shipping method, the
// saved draft's method, or standard delivery, in that order.
func (h *Handler) RecomputeFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	ctx := r.Context()
	s := sessionFrom(r)
	if err := s.PrepareAddress(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	method := req.ShippingMethod
	if !method.Valid() {
		if d, ok := s.Drafts.Load(ctx); ok {
			method = d.ShippingMethod
		}
	}
	syncService(r, s, method)

	q, err := h.deps.Checkout.RecomputeFee(ctx, s.Checkout(), method)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feeResponse{Quote: q, Cart: cartResponse(s.Cart.Snapshot())})
}

// syncService selects the delivery service matching the shipping method when
// the district's services are loaded and offer it.
func syncService(r *http.Request, s *session.Session, method checkout.ShippingMethod) {
	if !method.Valid() {
		return
	}
	typeID := method.ServiceTypeID()
	if s.Address.Selection().ServiceTypeID == typeID {
		return
	}
	if _, ok := s.Address.Service(typeID); !ok {
		return
	}
	if err := s.Address.SelectService(typeID); err != nil {
		zctx.From(r.Context()).Debug("Service not selected", zap.Int("service_type_id", typeID), zap.Error(err))
	}
}

// GetDraft returns the saved checkout form, empty when none was saved.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, _ := sessionFrom(r).Drafts.Load(r.Context())
	writeJSON(w, http.StatusOK, d)
}

// SaveDraft autosaves the checkout form. Zone ids missing from the form are
// filled in from the address cascade.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var d checkout.Draft
	if err := decodeBody(r, &d); err != nil {
		h.fail(w, r, err)
		return
	}
	s := sessionFrom(r)
	s.SaveDraft(r.Context(), d)
	syncService(r, s, d.ShippingMethod)
	w.WriteHeader(http.StatusNoContent)
}

// ClearDraft drops the saved checkout form.
func (h *Handler) ClearDraft(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Drafts.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// SubmitOrder places the order for the session cart. The body has the shape
// of the checkout draft; zone ids come from the address cascade.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var d checkout.Draft
	if err := decodeBody(r, &d); err != nil {
		h.fail(w, r, err)
		return
	}

	s := sessionFrom(r)
	ctx := s.WithToken(r.Context())
	if err := s.PrepareAddress(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	conf, err := h.deps.Checkout.Submit(ctx, s.Checkout(), checkout.SubmitRequest{
		ShippingAddress: d.ShippingAddress,
		ShippingMethod:  d.ShippingMethod,
		PaymentMethod:   d.PaymentMethod,
		Customer:        d.Customer,
	})
	if err != nil {
		var ve *checkout.ValidationError
		if !errors.As(err, &ve) {
			zctx.From(ctx).Info("Order submission failed", zap.Error(err))
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conf)
}

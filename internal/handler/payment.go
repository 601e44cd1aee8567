package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/payment"
)

// PaymentReturn classifies the gateway redirect the client landed on. With
// a configured hash secret, unsigned or tampered returns are rejected.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if v := h.deps.Verifier; v != nil {
		if err := v.Verify(q); err != nil {
			zctx.From(r.Context()).Warn("Payment return rejected",
				zap.String("txn_ref", q.Get(payment.ParamTxnRef)),
				zap.Error(err),
			)
			writeJSON(w, http.StatusBadRequest, payment.Result{
				Status:  payment.StatusFailed,
				Message: "The payment result could not be verified.",
				TxnRef:  q.Get(payment.ParamTxnRef),
			})
			return
		}
	}

	res := payment.ParseReturn(q)
	zctx.From(r.Context()).Info("Payment return",
		zap.String("txn_ref", res.TxnRef),
		zap.String("status", string(res.Status)),
		zap.String("code", res.Code),
	)
	writeJSON(w, http.StatusOK, res)
}

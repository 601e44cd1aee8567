package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/auth"
)

// Login signs the session in. The token stays server-side; the client gets
// the profile.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var cr auth.Credentials
	if err := decodeBody(r, &cr); err != nil {
		h.fail(w, r, err)
		return
	}
	cr.Email = strings.TrimSpace(cr.Email)
	if cr.Email == "" || cr.Password == "" {
		h.fail(w, r, badRequest("email and password required"))
		return
	}

	ctx := r.Context()
	t, err := h.deps.Auth.Login(ctx, cr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessionFrom(r).Tokens.Save(ctx, *t)
	zctx.From(ctx).Info("Signed in", zap.Int64("user_id", t.User.ID))
	writeJSON(w, http.StatusOK, t.User)
}

// Logout revokes the token upstream and forgets it. Upstream failures are
// logged; the session is signed out regardless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFrom(r)
	if t, ok := s.Tokens.Load(ctx); ok {
		if err := h.deps.Auth.Logout(ctx, t); err != nil {
			zctx.From(ctx).Warn("Upstream logout failed", zap.Error(err))
		}
	}
	s.Tokens.Clear(ctx)
	w.WriteHeader(http.StatusNoContent)
}

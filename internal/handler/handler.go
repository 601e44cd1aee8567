// Package handler implements the storefront HTTP API consumed by the web
// client. Every /api route runs in the context of a cookie-identified
// session.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/auth"
	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/domain/order"
	"github.com/hcbookstore/storefront/internal/domain/payment"
	"github.com/hcbookstore/storefront/internal/session"
	"github.com/hcbookstore/storefront/pkg/httpmiddleware"
)

// Config holds non-dependency configuration of the Handler.
type Config struct {
	CookieName   string
	CookieMaxAge time.Duration
	CookieSecure bool
	// Per-request deadline for /api routes; zero disables it.
	RequestTimeout time.Duration
}

// Deps are the services behind the API.
type Deps struct {
	Sessions *session.Manager
	Catalog  catalog.Catalog
	Checkout *checkout.Service
	Orders   order.History
	Auth     auth.Authenticator
	// Verifier checks gateway return signatures; nil skips the check.
	Verifier *payment.Verifier
	// Throttle guards login and order submission; nil disables it.
	Throttle httpmiddleware.Middleware
}

// Handler serves the storefront API.
type Handler struct {
	cfg  Config
	deps Deps

	mutations metric.Int64Counter
}

// New creates a Handler.
func New(cfg Config, deps Deps, mp metric.MeterProvider) (*Handler, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "storefront_session"
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = 30 * 24 * time.Hour
	}
	mutations, err := mp.Meter("storefront/handler").Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart mutations by operation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}
	return &Handler{cfg: cfg, deps: deps, mutations: mutations}, nil
}

// Router returns the /api routes.
func (h *Handler) Router() http.Handler {
	throttle := h.deps.Throttle
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		if h.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(h.cfg.RequestTimeout))
		}
		r.Use(h.withSession)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddItem)
		r.Patch("/cart/items/{id}", h.UpdateItem)
		r.Delete("/cart/items/{id}", h.RemoveItem)

		r.Get("/checkout/address", h.GetAddress)
		r.Post("/checkout/address/{level}", h.SelectAddress)
		r.Post("/checkout/fee", h.RecomputeFee)
		r.Get("/checkout/draft", h.GetDraft)
		r.Put("/checkout/draft", h.SaveDraft)
		r.Delete("/checkout/draft", h.ClearDraft)
		r.With(throttle).Post("/checkout/orders", h.SubmitOrder)

		r.Get("/payment/return", h.PaymentReturn)

		r.Get("/catalog/books", h.ListBooks)
		r.Get("/catalog/books/{code}", h.GetBook)
		r.Get("/catalog/search", h.Search)
		r.Get("/catalog/suggest", h.Suggest)
		r.Get("/catalog/authors", h.ListAuthors)
		r.Get("/catalog/authors/{id}/books", h.AuthorBooks)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)

		r.With(throttle).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
	})
	return r
}

type sessionKey struct{}

// withSession resolves the session cookie, issuing a new session id when the
// cookie is missing or malformed.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(h.cfg.CookieName); err == nil && session.ValidID(c.Value) {
			id = c.Value
		} else {
			id = session.NewID()
		}
		// Refresh the cookie so an active session does not expire.
		http.SetCookie(w, &http.Cookie{
			Name:     h.cfg.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(h.cfg.CookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := r.Context()
		s, err := h.deps.Sessions.Get(ctx, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.String("session", id)))
		ctx = context.WithValue(ctx, sessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey{}).(*session.Session)
}

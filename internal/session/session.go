// Package session holds the per-browser-session object graph of the
// storefront: cart, address cascade, checkout draft, suggestion debouncer
// and auth token, all backed by one namespace of a storage.KV.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/auth"
	"github.com/hcbookstore/storefront/internal/domain/cart"
	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/storage"
)

// Session is the state of one browser session.
type Session struct {
	ID      string
	Cart    *cart.Store
	Address *address.Cascade
	Drafts  *checkout.DraftStore
	Suggest *catalog.Suggester
	Tokens  *auth.TokenStore

	lastSeen atomic.Int64

	prepMu        sync.Mutex
	addressLoaded bool
	applied       address.Selection // draft zones last replayed
}

func newSession(id string, kv storage.KV, deps Deps) *Session {
	ns := storage.Namespace(kv, id)
	return &Session{
		ID:      id,
		Cart:    cart.NewStore(cart.NewPersister(ns)),
		Address: address.NewCascade(deps.Directory),
		Drafts:  checkout.NewDraftStore(ns),
		Suggest: catalog.NewSuggester(deps.Catalog, deps.SuggestDelay, deps.SuggestLimit),
		Tokens:  auth.NewTokenStore(ns),
	}
}

// Checkout returns the view of the session the checkout service works on.
func (s *Session) Checkout() checkout.Session {
	return checkout.Session{Cart: s.Cart, Address: s.Address, Drafts: s.Drafts}
}

// WithToken attaches the session's auth token, if any, to ctx.
func (s *Session) WithToken(ctx context.Context) context.Context {
	if t, ok := s.Tokens.Load(ctx); ok {
		return auth.WithToken(ctx, t)
	}
	return ctx
}

// PrepareAddress loads the province list on first use and replays the zone
// selection saved in the checkout draft whenever the draft zones changed
// since the last replay, as after eviction or when another process wrote
// the draft. A selection that can no longer be restored is dropped;
// only a failure to load provinces is returned, and the next call retries.
func (s *Session) PrepareAddress(ctx context.Context) error {
	s.prepMu.Lock()
	defer s.prepMu.Unlock()
	return s.prepareLocked(ctx)
}

func (s *Session) prepareLocked(ctx context.Context) error {
	d, _ := s.Drafts.Load(ctx)
	sel := draftSelection(d)
	zones := sel
	zones.ServiceTypeID = 0
	if s.addressLoaded && zones == s.applied {
		return nil
	}

	err := s.Address.Restore(ctx, sel)
	switch s.Address.Snapshot().Provinces.State {
	case address.StateLoaded, address.StateSelected:
		if err != nil {
			zctx.From(ctx).Debug("Saved address selection dropped", zap.Error(err))
		}
		s.addressLoaded = true
		s.applied = zones
		return nil
	default:
		return err
	}
}

// RememberAddress writes the cascade selection into the checkout draft so
// that it survives eviction and is visible to other processes.
func (s *Session) RememberAddress(ctx context.Context) {
	s.prepMu.Lock()
	defer s.prepMu.Unlock()

	d, _ := s.Drafts.Load(ctx)
	sel := s.Address.Selection()
	d.ShippingAddress.ProvinceID = sel.ProvinceID
	d.ShippingAddress.DistrictID = sel.DistrictID
	d.ShippingAddress.WardCode = sel.WardCode
	if m, ok := checkout.MethodForServiceType(sel.ServiceTypeID); ok {
		d.ShippingMethod = m
	}
	s.Drafts.Save(ctx, d)
	s.applied = address.Selection{ProvinceID: sel.ProvinceID, DistrictID: sel.DistrictID, WardCode: sel.WardCode}
}

// SaveDraft autosaves the checkout form. A form without zone ids keeps the
// cascade selection; zone ids in the form are replayed into the cascade.
func (s *Session) SaveDraft(ctx context.Context, d checkout.Draft) {
	s.prepMu.Lock()
	defer s.prepMu.Unlock()

	if a := &d.ShippingAddress; a.ProvinceID == 0 {
		sel := s.Address.Selection()
		a.ProvinceID, a.DistrictID, a.WardCode = sel.ProvinceID, sel.DistrictID, sel.WardCode
	}
	s.Drafts.Save(ctx, d)
	if err := s.prepareLocked(ctx); err != nil {
		zctx.From(ctx).Debug("Address not replayed", zap.Error(err))
	}
}

func draftSelection(d checkout.Draft) address.Selection {
	sel := address.Selection{
		ProvinceID: d.ShippingAddress.ProvinceID,
		DistrictID: d.ShippingAddress.DistrictID,
		WardCode:   d.ShippingAddress.WardCode,
	}
	if d.ShippingMethod.Valid() {
		sel.ServiceTypeID = d.ShippingMethod.ServiceTypeID()
	}
	return sel
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

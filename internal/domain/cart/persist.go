package cart

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/money"
	"github.com/hcbookstore/storefront/internal/storage"
)

// StorageKey is the fixed key the cart snapshot is stored under.
const StorageKey = "hc_bookstore_cart"

// ErrNoSnapshot means no usable cart is saved: the key is missing or holds
// a malformed snapshot.
var ErrNoSnapshot = errors.New("no saved cart")

var _ Persistence = (*Persister)(nil)

// Persister stores cart snapshots as JSON in a session-scoped KV.
type Persister struct {
	kv storage.KV
}

// NewPersister returns a Persister writing to kv.
func NewPersister(kv storage.KV) *Persister {
	return &Persister{kv: kv}
}

type snapshotJSON struct {
	Items            *[]lineItemJSON `json:"items"`
	Subtotal         money.VND       `json:"subtotal"`
	ShippingEstimate money.VND       `json:"shippingEstimate"`
	Total            money.VND       `json:"total"`
}

type lineItemJSON struct {
	ID       string       `json:"id"`
	BookID   string       `json:"bookId"`
	Book     BookSnapshot `json:"book"`
	Format   Format       `json:"format"`
	Quantity int          `json:"quantity"`
	Price    money.VND    `json:"price"`
	Subtotal money.VND    `json:"subtotal"`
}

// Save writes the snapshot. Failures are logged and dropped: the cart keeps
// working in memory for the rest of the session.
func (p *Persister) Save(ctx context.Context, c Cart) {
	data, err := encodeSnapshot(c)
	if err != nil {
		zctx.From(ctx).Error("Encode cart snapshot", zap.Error(err))
		return
	}
	if err := p.kv.Set(ctx, StorageKey, data); err != nil {
		zctx.From(ctx).Warn("Save cart snapshot", zap.Error(err))
	}
}

// Load returns the saved cart. Missing, unreadable or malformed snapshots are
// reported as absent.
func (p *Persister) Load(ctx context.Context) (Cart, bool) {
	c, err := p.Fetch(ctx)
	return c, err == nil
}

// Fetch returns the saved cart, ErrNoSnapshot when nothing usable is saved,
// or the storage error.
func (p *Persister) Fetch(ctx context.Context) (Cart, error) {
	data, err := p.kv.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Cart{}, ErrNoSnapshot
	}
	if err != nil {
		zctx.From(ctx).Warn("Load cart snapshot", zap.Error(err))
		return Cart{}, errors.Wrap(err, "load cart snapshot")
	}

	c, err := decodeSnapshot(data)
	if err != nil {
		zctx.From(ctx).Debug("Discard malformed cart snapshot", zap.Error(err))
		return Cart{}, ErrNoSnapshot
	}
	return c, nil
}

// Clear removes the saved cart.
func (p *Persister) Clear(ctx context.Context) {
	if err := p.kv.Delete(ctx, StorageKey); err != nil {
		zctx.From(ctx).Warn("Clear cart snapshot", zap.Error(err))
	}
}

func encodeSnapshot(c Cart) ([]byte, error) {
	items := make([]lineItemJSON, len(c.Items))
	for i, li := range c.Items {
		items[i] = lineItemJSON{
			ID:       li.ID,
			BookID:   li.BookID,
			Book:     li.Book,
			Format:   li.Format,
			Quantity: li.Quantity,
			Price:    li.UnitPrice,
			Subtotal: li.Subtotal(),
		}
	}
	return json.Marshal(snapshotJSON{
		Items:            &items,
		Subtotal:         c.Subtotal(),
		ShippingEstimate: c.ShippingEstimate,
		Total:            c.Total(),
	})
}

// decodeSnapshot parses a saved cart. Stored subtotals and totals are ignored
// and recomputed from the lines.
func decodeSnapshot(data []byte) (Cart, error) {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Cart{}, errors.Wrap(err, "unmarshal")
	}
	if raw.Items == nil {
		return Cart{}, errors.New("items missing")
	}
	if raw.ShippingEstimate < 0 {
		return Cart{}, errors.New("negative shipping estimate")
	}

	type identity struct {
		bookID string
		format Format
	}
	seen := make(map[identity]struct{}, len(*raw.Items))
	ids := make(map[string]struct{}, len(*raw.Items))

	items := make([]LineItem, 0, len(*raw.Items))
	for i, it := range *raw.Items {
		switch {
		case it.ID == "" || it.BookID == "":
			return Cart{}, errors.Errorf("item %d: missing id", i)
		case !it.Format.Valid():
			return Cart{}, errors.Errorf("item %d: invalid format %q", i, it.Format)
		case it.Quantity < 1:
			return Cart{}, errors.Errorf("item %d: invalid quantity %d", i, it.Quantity)
		case it.Price < 0:
			return Cart{}, errors.Errorf("item %d: negative price", i)
		}

		key := identity{bookID: it.BookID, format: it.Format}
		if _, dup := seen[key]; dup {
			return Cart{}, errors.Errorf("item %d: duplicate line for %s/%s", i, it.BookID, it.Format)
		}
		if _, dup := ids[it.ID]; dup {
			return Cart{}, errors.Errorf("item %d: duplicate id %q", i, it.ID)
		}
		seen[key] = struct{}{}
		ids[it.ID] = struct{}{}

		book := it.Book
		if book.Code == "" {
			book.Code = it.BookID
		}
		items = append(items, LineItem{
			ID:        it.ID,
			BookID:    it.BookID,
			Book:      book,
			Format:    it.Format,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}

	return Cart{Items: items, ShippingEstimate: raw.ShippingEstimate}, nil
}

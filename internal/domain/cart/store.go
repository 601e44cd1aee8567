package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/hcbookstore/storefront/internal/domain/money"
)

// Persistence saves and restores cart snapshots. Write errors are handled
// internally. Fetch returns ErrNoSnapshot when nothing usable is saved and
// any other error when storage could not be read.
type Persistence interface {
	Save(ctx context.Context, c Cart)
	Fetch(ctx context.Context) (Cart, error)
	Clear(ctx context.Context)
}

// Store holds one session's cart. The persisted snapshot is authoritative:
// every mutation re-reads it, applies the change and saves the result before
// the lock is released, so stores in different processes sharing one
// storage backend see each other's changes.
type Store struct {
	persist Persistence
	now     func() time.Time

	mu       sync.Mutex
	items    []LineItem
	shipping money.VND
}

// NewStore creates an empty Store. Call Rehydrate to restore a saved cart.
func NewStore(p Persistence) *Store {
	return &Store{persist: p, now: time.Now}
}

// Rehydrate replaces the in-memory cart with the persisted snapshot and
// reports whether one was found. Without a saved snapshot the cart is
// emptied; when storage cannot be read the in-memory cart is kept.
func (s *Store) Rehydrate(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) bool {
	c, err := s.persist.Fetch(ctx)
	switch {
	case err == nil:
		s.items = slices.Clone(c.Items)
		s.shipping = c.ShippingEstimate
		return true
	case errors.Is(err, ErrNoSnapshot):
		s.items = nil
		s.shipping = 0
	}
	return false
}

// AddItem adds quantity units of book in the given format.
//
// If a line for the same book and format exists its quantity is increased and
// its original unit price is kept; unitPrice is ignored in that case. A new
// line requires a positive unit price.
func (s *Store) AddItem(ctx context.Context, book BookSnapshot, format Format, quantity int, unitPrice money.VND) (LineItem, error) {
	if !format.Valid() {
		return LineItem{}, ErrInvalidFormat
	}
	if book.Code == "" {
		return LineItem{}, ErrBookRequired
	}
	if quantity <= 0 {
		return LineItem{}, &InvalidQuantityError{Quantity: quantity}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked(ctx)

	if i := s.indexOf(book.Code, format); i >= 0 {
		s.items[i].Quantity += quantity
		s.persistLocked(ctx)
		return s.items[i], nil
	}

	switch {
	case unitPrice == 0:
		return LineItem{}, ErrPriceRequired
	case unitPrice < 0:
		return LineItem{}, &InvalidPriceError{Price: unitPrice}
	}

	li := LineItem{
		ID:        fmt.Sprintf("%s-%s-%d", book.Code, format, s.now().UnixMilli()),
		BookID:    book.Code,
		Book:      book,
		Format:    format,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
	s.items = append(s.items, li)
	s.persistLocked(ctx)
	return li, nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(ctx, itemID)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked(ctx)

	i := s.indexByID(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	s.items[i].Quantity = quantity
	s.persistLocked(ctx)
	return nil
}

// RemoveItem deletes a line. Removing an unknown id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked(ctx)

	i := s.indexByID(itemID)
	if i < 0 {
		return
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.persistLocked(ctx)
}

// Clear empties the cart and erases its persisted state.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.shipping = 0
	s.persist.Clear(ctx)
}

// SetShippingEstimate records the externally computed shipping cost.
func (s *Store) SetShippingEstimate(ctx context.Context, amount money.VND) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked(ctx)

	s.shipping = amount
	s.persistLocked(ctx)
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Items returns a copy of the current lines in insertion order.
func (s *Store) Items() []LineItem {
	return s.Snapshot().Items
}

// ItemCount returns the number of units in the cart.
func (s *Store) ItemCount() int {
	return s.Snapshot().ItemCount()
}

// Subtotal returns the sum of line subtotals.
func (s *Store) Subtotal() money.VND {
	return s.Snapshot().Subtotal()
}

// Total returns subtotal plus shipping estimate.
func (s *Store) Total() money.VND {
	return s.Snapshot().Total()
}

func (s *Store) snapshotLocked() Cart {
	return Cart{
		Items:            slices.Clone(s.items),
		ShippingEstimate: s.shipping,
	}
}

// persistLocked saves the cart, or removes the saved copy once it has no
// lines. An empty cart persists nothing, not even a shipping estimate set on
// it: the estimate stays in memory until the next reload and is recomputed
// once items are added.
func (s *Store) persistLocked(ctx context.Context) {
	if len(s.items) == 0 {
		s.persist.Clear(ctx)
		return
	}
	s.persist.Save(ctx, s.snapshotLocked())
}

func (s *Store) indexOf(bookID string, format Format) int {
	return slices.IndexFunc(s.items, func(li LineItem) bool {
		return li.BookID == bookID && li.Format == format
	})
}

func (s *Store) indexByID(id string) int {
	return slices.IndexFunc(s.items, func(li LineItem) bool {
		return li.ID == id
	})
}

// Package cart implements the session shopping cart: line-item identity and
// merge rules, derived totals, and the snapshot persistence adapter.
package cart

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/money"
)

// Format is the edition a line item is sold in.
type Format string

const (
	FormatPhysical Format = "physical"
	FormatDigital  Format = "digital"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatPhysical || f == FormatDigital
}

// Sentinel errors for cart mutations.
var (
	ErrInvalidFormat = errors.New("format must be physical or digital")
	ErrBookRequired  = errors.New("book code required")
	ErrPriceRequired = errors.New("unit price required for a new cart line")
	ErrItemNotFound  = errors.New("cart item not found")
)

// InvalidQuantityError indicates a non-positive quantity passed to AddItem.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0, got %d", e.Quantity)
}

// InvalidPriceError indicates a negative unit price.
type InvalidPriceError struct {
	Price money.VND
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("unit price must not be negative, got %d", int64(e.Price))
}

// BookSnapshot is the display data of a book captured when it was added.
// The cart never refreshes it from the catalog.
type BookSnapshot struct {
	Code     string   `json:"code"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
}

// SnapshotOf captures the display data of a catalog book.
func SnapshotOf(b *catalog.Book) BookSnapshot {
	return BookSnapshot{
		Code:     b.Code,
		Title:    b.Title,
		Authors:  b.AuthorNames(),
		CoverURL: b.CoverURL(),
	}
}

// LineItem is one (book, format) row of the cart.
type LineItem struct {
	ID        string
	BookID    string
	Book      BookSnapshot
	Format    Format
	Quantity  int
	UnitPrice money.VND
}

// Subtotal returns Quantity × UnitPrice.
func (li LineItem) Subtotal() money.VND {
	return li.UnitPrice.Mul(li.Quantity)
}

// Cart is an immutable view of the cart at one point in time.
type Cart struct {
	Items            []LineItem
	ShippingEstimate money.VND
}

// Subtotal returns the sum of all line subtotals.
func (c Cart) Subtotal() money.VND {
	var sum money.VND
	for _, li := range c.Items {
		sum += li.Subtotal()
	}
	return sum
}

// Total returns Subtotal plus the shipping estimate.
func (c Cart) Total() money.VND {
	return c.Subtotal() + c.ShippingEstimate
}

// ItemCount returns the number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, li := range c.Items {
		n += li.Quantity
	}
	return n
}

// PhysicalUnits returns the number of physical units, which drives the
// shipping weight estimate.
func (c Cart) PhysicalUnits() int {
	n := 0
	for _, li := range c.Items {
		if li.Format == FormatPhysical {
			n += li.Quantity
		}
	}
	return n
}

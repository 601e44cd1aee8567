// Package checkout assembles orders from the session cart and the address
// cascade, keeps the shipping estimate current and autosaves the checkout
// form.
package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/hcbookstore/storefront/internal/domain/cart"
	"github.com/hcbookstore/storefront/internal/domain/money"
)

// ShippingMethod is the delivery speed chosen by the customer.
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

// Valid reports whether m is a known method.
func (m ShippingMethod) Valid() bool {
	return m == ShippingStandard || m == ShippingExpress
}

// FlatCost is the shipping price used when no quote is available.
func (m ShippingMethod) FlatCost() money.VND {
	if m == ShippingExpress {
		return 50000
	}
	return 30000
}

// ServiceTypeID maps the method to the delivery provider service type.
func (m ShippingMethod) ServiceTypeID() int {
	if m == ShippingExpress {
		return 1
	}
	return 2
}

// MethodForServiceType is the inverse of ShippingMethod.ServiceTypeID.
func MethodForServiceType(serviceTypeID int) (ShippingMethod, bool) {
	switch serviceTypeID {
	case 1:
		return ShippingExpress, true
	case 2:
		return ShippingStandard, true
	default:
		return "", false
	}
}

// PaymentMethod is how the order is paid.
type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "COD"
	PaymentVNPay PaymentMethod = "VNPAY"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentVNPay
}

// Address is the delivery target. The zone ids come from the address cascade.
type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	ProvinceID int    `json:"provinceId,omitempty"`
	DistrictID int    `json:"districtId,omitempty"`
	WardCode   string `json:"wardCode,omitempty"`
}

// Customer is the contact of the buyer.
type Customer struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// Draft is the in-progress checkout form.
type Draft struct {
	ShippingAddress Address        `json:"shippingAddress"`
	ShippingMethod  ShippingMethod `json:"shippingMethod"`
	Customer        Customer       `json:"customerInfo"`
	PaymentMethod   PaymentMethod  `json:"paymentMethod"`
	SaveAsDefault   bool           `json:"saveAsDefault"`
}

// SubmitRequest is the submitted checkout form.
type SubmitRequest struct {
	ShippingAddress Address
	ShippingMethod  ShippingMethod
	PaymentMethod   PaymentMethod
	Customer        Customer
}

// ItemType is the upstream spelling of a cart format.
type ItemType string

const (
	ItemPhysical ItemType = "PHYSICAL"
	ItemDigital  ItemType = "DIGITAL"
)

func itemTypeOf(f cart.Format) ItemType {
	return ItemType(strings.ToUpper(string(f)))
}

// OrderItem is one line of an order request.
type OrderItem struct {
	BookCode string   `json:"bookCode"`
	Quantity int      `json:"quantity"`
	ItemType ItemType `json:"itemType"`
}

// OrderRequest is sent once to create the order.
type OrderRequest struct {
	Items           []OrderItem    `json:"items"`
	ShippingAddress Address        `json:"shippingAddress"`
	ShippingMethod  ShippingMethod `json:"shippingMethod"`
	ServiceTypeID   int            `json:"serviceTypeId,omitempty"`
	PaymentMethod   PaymentMethod  `json:"paymentMethod"`
	Customer        *Customer      `json:"customerInfo,omitempty"`
}

// Confirmation describes a created order.
type Confirmation struct {
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	TotalAmount money.VND `json:"totalAmount"`
	Status      string    `json:"status"`
	PaymentURL  string    `json:"paymentUrl,omitempty"`
}

// FeeRequest asks the delivery provider for a quote.
type FeeRequest struct {
	DistrictID    int
	WardCode      string
	Weight        int
	ServiceTypeID int
}

// Quote is a shipping price. Fallback marks a flat rate used in place of a
// provider quote.
type Quote struct {
	Total                money.VND `json:"total"`
	ServiceFee           money.VND `json:"serviceFee"`
	ExpectedDeliveryTime string    `json:"expectedDeliveryTime,omitempty"`
	Fallback             bool      `json:"fallback"`
}

var (
	// ErrEmptyCart is returned when submitting a checkout with no items.
	ErrEmptyCart = errors.New("cart is empty")
)

// OrderPlacementError indicates the order could not be created. Nothing was
// charged and the cart is intact.
type OrderPlacementError struct {
	Err error
}

func (e *OrderPlacementError) Error() string {
	return fmt.Sprintf("place order: %v", e.Err)
}

func (e *OrderPlacementError) Unwrap() error { return e.Err }

// PaymentSetupError indicates the order exists but the payment redirect
// could not be obtained. The cart is kept.
type PaymentSetupError struct {
	OrderID     int64
	OrderNumber string
	Err         error
}

func (e *PaymentSetupError) Error() string {
	return fmt.Sprintf("order %s placed, payment setup failed: %v", e.OrderNumber, e.Err)
}

func (e *PaymentSetupError) Unwrap() error { return e.Err }

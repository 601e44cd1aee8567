// Package order describes the customer's order history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/hcbookstore/storefront/internal/domain/money"
)

// Errors returned by History. Callers redirect on ErrAuthRequired and
// ErrAccessDenied instead of reporting a generic failure.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("order not found")
)

// Summary is one row of the order history.
type Summary struct {
	ID            int64     `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	CreatedAt     time.Time `json:"createdAt"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalAmount   money.VND `json:"totalAmount"`
	ItemCount     int       `json:"itemCount"`
}

// Item is one line of a placed order.
type Item struct {
	ID         int64     `json:"id"`
	BookCode   string    `json:"bookCode"`
	BookTitle  string    `json:"bookTitle"`
	ItemType   string    `json:"itemType"`
	Quantity   int       `json:"quantity"`
	UnitPrice  money.VND `json:"unitPrice"`
	TotalPrice money.VND `json:"totalPrice"`
}

// Delivery is the shipment data attached to an order.
type Delivery struct {
	ProvinceID           int    `json:"provinceId,omitempty"`
	DistrictID           int    `json:"districtId,omitempty"`
	WardCode             string `json:"wardCode,omitempty"`
	ServiceTypeID        int    `json:"serviceTypeId,omitempty"`
	ServiceID            int    `json:"serviceId,omitempty"`
	ExpectedDeliveryTime string `json:"expectedDeliveryTime,omitempty"`
	TrackingCode         string `json:"ghnOrderCode,omitempty"`
	Weight               int    `json:"weight,omitempty"`
}

// Details is a full order.
type Details struct {
	ID              int64     `json:"id"`
	OrderNumber     string    `json:"orderNumber"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"paymentStatus"`
	PaymentMethod   string    `json:"paymentMethod,omitempty"`
	OrderType       string    `json:"orderType"`
	Subtotal        money.VND `json:"subtotal"`
	ShippingAmount  money.VND `json:"shippingAmount"`
	TaxAmount       money.VND `json:"taxAmount"`
	DiscountAmount  money.VND `json:"discountAmount"`
	TotalAmount     money.VND `json:"totalAmount"`
	ShippingAddress string    `json:"shippingAddress,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Items           []Item    `json:"items"`
	Delivery        *Delivery `json:"deliveryInfo,omitempty"`
}

// Page is one page of order history.
type Page struct {
	Orders        []Summary `json:"content"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	Size          int       `json:"size"`
	Number        int       `json:"number"`
	First         bool      `json:"first"`
	Last          bool      `json:"last"`
}

// EmptyPage is returned when the history has no data.
func EmptyPage(size int) *Page {
	return &Page{Orders: []Summary{}, Size: size, First: true, Last: true}
}

// History reads the orders of the customer authenticated in ctx.
type History interface {
	ListOrders(ctx context.Context, page, size int) (*Page, error)
	GetOrder(ctx context.Context, id int64) (*Details, error)
}

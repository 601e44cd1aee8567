package handler

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/domain/money"
	"github.com/hcbookstore/storefront/internal/upstream"
)

type levelView[T any] struct {
	State   string `json:"state"`
	Options []T    `json:"options"`
}

type addressView struct {
	Provinces levelView[address.Province] `json:"provinces"`
	Districts levelView[address.District] `json:"districts"`
	Wards     levelView[address.Ward]     `json:"wards"`
	Services  levelView[address.Service]  `json:"services"`
	Selection address.Selection           `json:"selection"`
}

func validDraft(pay checkout.PaymentMethod) checkout.Draft {
	return checkout.Draft{
		ShippingAddress: checkout.Address{
			FullName: "Nguyễn Văn A",
			Phone:    "0901234567",
			Address:  "12 Lê Lợi",
			City:     "Hồ Chí Minh",
		},
		ShippingMethod: checkout.ShippingStandard,
		Customer:       checkout.Customer{Email: "a@example.com", FullName: "Nguyễn Văn A", Phone: "0901234567"},
		PaymentMethod:  pay,
	}
}

func TestAddress_Cascade(t *testing.T) {
	e := newTestEnv(t)

	var v addressView
	require.Equal(t, http.StatusOK, e.call(http.MethodGet, "/api/checkout/address", nil, &v))
	assert.Equal(t, "loaded", v.Provinces.State)
	assert.Len(t, v.Provinces.Options, 2)
	assert.Equal(t, "unselected", v.Districts.State)

	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/province", map[string]any{"id": 202}, &v))
	assert.Equal(t, "selected", v.Provinces.State)
	assert.Equal(t, "loaded", v.Districts.State)
	assert.Equal(t, 202, v.Selection.ProvinceID)

	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/district", map[string]any{"id": 1442}, &v))
	assert.Equal(t, "loaded", v.Wards.State)
	assert.Equal(t, "loaded", v.Services.State)
	assert.Len(t, v.Services.Options, 2)

	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/ward", map[string]any{"code": "20101"}, &v))
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/service", map[string]any{"id": 1}, &v))
	assert.Equal(t, address.Selection{ProvinceID: 202, DistrictID: 1442, WardCode: "20101", ServiceTypeID: 1}, v.Selection)

	// Changing the province resets everything below it.
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/province", map[string]any{"id": 201}, &v))
	assert.Equal(t, address.Selection{ProvinceID: 201}, v.Selection)
	assert.Equal(t, "unselected", v.Wards.State)
}

func TestAddress_Errors(t *testing.T) {
	e := newTestEnv(t)

	require.Equal(t, http.StatusBadRequest,
		e.call(http.MethodPost, "/api/checkout/address/province", map[string]any{"id": 999}, nil))
	require.Equal(t, http.StatusConflict,
		e.call(http.MethodPost, "/api/checkout/address/ward", map[string]any{"code": "20101"}, nil),
		"wards are not loaded before a district is chosen")
	require.Equal(t, http.StatusNotFound,
		e.call(http.MethodPost, "/api/checkout/address/street", map[string]any{"id": 1}, nil))
}

func TestFee_FallbackWithoutAddress(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))

	var resp feeResponse
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/fee",
		map[string]any{"shippingMethod": "express"}, &resp))
	assert.True(t, resp.Quote.Fallback)
	assert.Equal(t, money.VND(50000), resp.Quote.Total)
	assert.Equal(t, money.VND(50000), resp.Cart.ShippingEstimate)
	assert.Equal(t, money.VND(150000), resp.Cart.Total)
	assert.Empty(t, e.fees.reqs, "no quote without a complete address")

	// Without a body the standard rate applies.
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/fee", nil, &resp))
	assert.Equal(t, money.VND(30000), resp.Quote.Total)
}

func TestFee_Quote(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 2))
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "digital", 1))
	e.selectAddress()

	var resp feeResponse
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/fee",
		map[string]any{"shippingMethod": "standard"}, &resp))
	assert.False(t, resp.Quote.Fallback)
	assert.Equal(t, money.VND(32000), resp.Quote.Total)
	assert.Equal(t, "2024-01-05", resp.Quote.ExpectedDeliveryTime)
	assert.Equal(t, money.VND(32000), resp.Cart.ShippingEstimate)

	require.Len(t, e.fees.reqs, 1)
	assert.Equal(t, checkout.FeeRequest{DistrictID: 1442, WardCode: "20101", Weight: 2000, ServiceTypeID: 2}, e.fees.reqs[0])
}

func TestFee_DraftMethod(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))
	e.selectAddress()

	d := validDraft(checkout.PaymentCOD)
	d.ShippingMethod = checkout.ShippingExpress
	require.Equal(t, http.StatusNoContent, e.call(http.MethodPut, "/api/checkout/draft", d, nil))

	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/fee", nil, nil))
	require.Len(t, e.fees.reqs, 1)
	assert.Equal(t, 1, e.fees.reqs[0].ServiceTypeID)
}

func TestFee_UpstreamFailureKeepsEstimate(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))
	e.selectAddress()
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/fee", map[string]any{"shippingMethod": "standard"}, nil))

	e.fees.err = upstream.ErrNoData
	var resp errorResponse
	require.Equal(t, http.StatusBadGateway, e.call(http.MethodPost, "/api/checkout/fee",
		map[string]any{"shippingMethod": "standard"}, &resp))
	assert.Equal(t, money.VND(32000), e.cart().ShippingEstimate)
}

func TestDraft_CRUD(t *testing.T) {
	e := newTestEnv(t)

	var d checkout.Draft
	require.Equal(t, http.StatusOK, e.call(http.MethodGet, "/api/checkout/draft", nil, &d))
	assert.Equal(t, checkout.Draft{}, d)

	saved := validDraft(checkout.PaymentVNPay)
	saved.SaveAsDefault = true
	require.Equal(t, http.StatusNoContent, e.call(http.MethodPut, "/api/checkout/draft", saved, nil))
	require.Equal(t, http.StatusOK, e.call(http.MethodGet, "/api/checkout/draft", nil, &d))
	assert.Equal(t, saved, d)

	require.Equal(t, http.StatusNoContent, e.call(http.MethodDelete, "/api/checkout/draft", nil, nil))
	d = checkout.Draft{}
	require.Equal(t, http.StatusOK, e.call(http.MethodGet, "/api/checkout/draft", nil, &d))
	assert.Equal(t, checkout.Draft{}, d)
}

func TestSubmit_Validation(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))

	var resp errorResponse
	require.Equal(t, http.StatusUnprocessableEntity, e.call(http.MethodPost, "/api/checkout/orders",
		checkout.Draft{ShippingAddress: checkout.Address{Phone: "12ab"}}, &resp))
	assert.Contains(t, resp.Fields, "shippingAddress.fullName")
	assert.Contains(t, resp.Fields, "shippingAddress.phone")
	assert.Contains(t, resp.Fields, "shippingAddress.wardCode")
	assert.Contains(t, resp.Fields, "paymentMethod")
	assert.Empty(t, e.orders.placed)
	assert.Len(t, e.cart().Items, 1)
}

func TestSubmit_EmptyCart(t *testing.T) {
	e := newTestEnv(t)
	e.selectAddress()

	require.Equal(t, http.StatusConflict, e.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentCOD), nil))
	assert.Empty(t, e.orders.placed)
}

func TestSubmit_COD(t *testing.T) {
	e := newTestEnv(t)
	e.login()
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 2))
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "digital", 1))
	e.selectAddress()
	require.Equal(t, http.StatusNoContent, e.call(http.MethodPut, "/api/checkout/draft", validDraft(checkout.PaymentCOD), nil))

	var conf checkout.Confirmation
	require.Equal(t, http.StatusCreated, e.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentCOD), &conf))
	assert.Equal(t, "HC-77", conf.OrderNumber)
	assert.Empty(t, conf.PaymentURL)

	require.Len(t, e.orders.placed, 1)
	placed := e.orders.placed[0]
	assert.Equal(t, []checkout.OrderItem{
		{BookCode: "BK-1", Quantity: 2, ItemType: checkout.ItemPhysical},
		{BookCode: "BK-1", Quantity: 1, ItemType: checkout.ItemDigital},
	}, placed.Items)
	assert.Equal(t, 202, placed.ShippingAddress.ProvinceID)
	assert.Equal(t, 1442, placed.ShippingAddress.DistrictID)
	assert.Equal(t, "20101", placed.ShippingAddress.WardCode)
	assert.Equal(t, "jwt-c@example.com", e.orders.placeToken)

	assert.Empty(t, e.cart().Items)
	var d checkout.Draft
	require.Equal(t, http.StatusOK, e.call(http.MethodGet, "/api/checkout/draft", nil, &d))
	assert.Equal(t, checkout.Draft{}, d, "draft cleared after placing")
}

func TestSubmit_VNPay(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))
	e.selectAddress()

	var conf checkout.Confirmation
	require.Equal(t, http.StatusCreated, e.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentVNPay), &conf))
	assert.Equal(t, "https://pay.example.com/vpcpay?vnp_TxnRef=HC-77", conf.PaymentURL)
	assert.Empty(t, e.cart().Items)
	assert.Empty(t, e.orders.placeToken, "guest checkout sends no token")
}

func TestSubmit_PaymentSetupFailureKeepsCart(t *testing.T) {
	e := newTestEnv(t)
	e.orders.paymentErr = &upstream.StatusError{StatusCode: http.StatusBadGateway}
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))
	e.selectAddress()

	var resp errorResponse
	require.Equal(t, http.StatusBadGateway, e.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentVNPay), &resp))
	assert.Equal(t, int64(77), resp.OrderID)
	assert.Equal(t, "HC-77", resp.OrderNumber)
	assert.Len(t, e.cart().Items, 1)
}

func TestSubmit_UpstreamRejects(t *testing.T) {
	e := newTestEnv(t)
	e.orders.placeErr = &upstream.StatusError{StatusCode: http.StatusBadRequest, Message: "BK-2 is out of stock"}
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))
	e.selectAddress()

	var resp errorResponse
	require.Equal(t, http.StatusUnprocessableEntity, e.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentCOD), &resp))
	assert.Equal(t, "BK-2 is out of stock", resp.Message)
	assert.Len(t, e.cart().Items, 1)
}

func TestSubmit_UpstreamDown(t *testing.T) {
	e := newTestEnv(t)
	e.orders.placeErr = errors.Wrap(&upstream.StatusError{StatusCode: http.StatusServiceUnavailable}, "create order")
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))
	e.selectAddress()

	var resp errorResponse
	require.Equal(t, http.StatusBadGateway, e.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentCOD), &resp))
	assert.Equal(t, "the order could not be placed, please try again", resp.Message)
}

func TestCheckout_ResumesInAnotherProcess(t *testing.T) {
	a := newTestEnv(t)
	require.Equal(t, http.StatusOK, a.addItem("BK-1", "physical", 1))
	a.selectAddress()
	require.Equal(t, http.StatusNoContent, a.call(http.MethodPut, "/api/checkout/draft", validDraft(checkout.PaymentCOD), nil))

	var resp feeResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/checkout/fee", nil, &resp))
	require.False(t, resp.Quote.Fallback)

	b := a.replica()
	resp = feeResponse{}
	require.Equal(t, http.StatusOK, b.call(http.MethodPost, "/api/checkout/fee", nil, &resp))
	assert.False(t, resp.Quote.Fallback, "address restored from the saved draft")
	assert.Equal(t, money.VND(32000), resp.Cart.ShippingEstimate)
	require.Len(t, a.fees.reqs, 2)
	assert.Equal(t, 1442, a.fees.reqs[1].DistrictID)
	assert.Equal(t, 2, a.fees.reqs[1].ServiceTypeID)

	var conf checkout.Confirmation
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/api/checkout/orders", validDraft(checkout.PaymentCOD), &conf))
	require.Len(t, a.orders.placed, 1)
	placed := a.orders.placed[0].ShippingAddress
	assert.Equal(t, 202, placed.ProvinceID)
	assert.Equal(t, 1442, placed.DistrictID)
	assert.Equal(t, "20101", placed.WardCode)
	assert.Empty(t, a.cart().Items, "order clears the cart for every process")
}

func TestCart_SharedAcrossProcesses(t *testing.T) {
	a := newTestEnv(t)
	b := a.replica()

	require.Equal(t, http.StatusOK, a.addItem("BK-1", "physical", 1))
	require.Equal(t, http.StatusOK, b.addItem("BK-2", "physical", 1))
	require.Equal(t, http.StatusOK, a.addItem("BK-1", "physical", 1))

	got := a.replica().cart()
	require.Len(t, got.Items, 2)
	assert.Equal(t, 3, got.ItemCount)
	assert.Equal(t, got, b.cart())
}

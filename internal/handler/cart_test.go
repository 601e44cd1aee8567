package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcbookstore/storefront/internal/domain/cart"
	"github.com/hcbookstore/storefront/internal/domain/money"
)

func TestCart_EmptyOnFirstVisit(t *testing.T) {
	e := newTestEnv(t)

	c := e.cart()
	assert.Empty(t, c.Items)
	assert.Zero(t, c.ItemCount)
	assert.Equal(t, money.VND(0), c.Total)
	assert.Equal(t, "0 ₫", c.TotalText)
}

func TestCart_AddMergesAndTotals(t *testing.T) {
	e := newTestEnv(t)

	var added struct {
		ItemID string   `json:"itemId"`
		Cart   cartJSON `json:"cart"`
	}
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/cart/items",
		map[string]any{"bookCode": "BK-1", "format": "physical", "quantity": 2}, &added))
	assert.NotEmpty(t, added.ItemID)
	require.Len(t, added.Cart.Items, 1)
	assert.Equal(t, "Nhà giả kim", added.Cart.Items[0].Book.Title)
	assert.Equal(t, []string{"Paulo Coelho"}, added.Cart.Items[0].Book.Authors)
	assert.Equal(t, "https://cdn/bk1.jpg", added.Cart.Items[0].Book.CoverURL)

	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "digital", 1))

	c := e.cart()
	require.Len(t, c.Items, 2, "same book and format merge into one line")
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, money.VND(300000), c.Items[0].Subtotal)
	assert.Equal(t, cart.FormatDigital, c.Items[1].Format)
	assert.Equal(t, 4, c.ItemCount)
	assert.Equal(t, money.VND(340000), c.Subtotal)
	assert.Equal(t, money.VND(340000), c.Total)
	assert.Equal(t, "340.000 ₫", c.SubtotalText)
}

func TestCart_DefaultQuantity(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/api/cart/items",
		map[string]any{"bookCode": "BK-2", "format": "physical"}, nil))

	c := e.cart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, money.VND(79000), c.Items[0].UnitPrice)
}

func TestCart_KeepsFirstPrice(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))

	e.catalog.setPhysicalPrice("BK-2", 99000)
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))

	c := e.cart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, money.VND(79000), c.Items[0].UnitPrice)
	assert.Equal(t, money.VND(158000), c.Total)
}

func TestCart_AddErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		body   any
		status int
	}{
		{"UnknownBook", map[string]any{"bookCode": "NOPE", "format": "physical"}, http.StatusNotFound},
		{"MissingCode", map[string]any{"format": "physical"}, http.StatusBadRequest},
		{"BadFormat", map[string]any{"bookCode": "BK-1", "format": "audio"}, http.StatusBadRequest},
		{"NegativeQuantity", map[string]any{"bookCode": "BK-1", "format": "physical", "quantity": -1}, http.StatusBadRequest},
		{"EditionNotSold", map[string]any{"bookCode": "BK-2", "format": "digital"}, http.StatusBadRequest},
		{"MalformedBody", "{", http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			var resp errorResponse
			require.Equal(t, tt.status, e.call(http.MethodPost, "/api/cart/items", tt.body, &resp))
			assert.Equal(t, tt.status, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Empty(t, e.cart().Items)
		})
	}
}

func TestCart_CatalogUnavailable(t *testing.T) {
	e := newTestEnv(t)
	e.catalog.err = errors.New("connection refused")

	var resp errorResponse
	require.Equal(t, http.StatusInternalServerError, e.call(http.MethodPost, "/api/cart/items",
		map[string]any{"bookCode": "BK-1", "format": "physical"}, &resp))
	assert.Equal(t, "internal error", resp.Message)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))
	require.Equal(t, http.StatusOK, e.addItem("BK-2", "physical", 1))
	items := e.cart().Items
	require.Len(t, items, 2)

	var c cartJSON
	require.Equal(t, http.StatusOK, e.call(http.MethodPatch, "/api/cart/items/"+items[0].ID,
		map[string]any{"quantity": 5}, &c))
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, money.VND(579000), c.Total)

	require.Equal(t, http.StatusOK, e.call(http.MethodPatch, "/api/cart/items/"+items[0].ID,
		map[string]any{"quantity": 0}, &c))
	require.Len(t, c.Items, 1, "zero quantity removes the line")
	assert.Equal(t, "BK-2", c.Items[0].BookID)

	require.Equal(t, http.StatusOK, e.call(http.MethodDelete, "/api/cart/items/"+items[1].ID, nil, &c))
	assert.Empty(t, c.Items)

	require.Equal(t, http.StatusOK, e.call(http.MethodDelete, "/api/cart/items/missing", nil, &c),
		"removing an unknown line is a no-op")
}

func TestCart_UpdateErrors(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))
	id := e.cart().Items[0].ID

	require.Equal(t, http.StatusNotFound, e.call(http.MethodPatch, "/api/cart/items/missing",
		map[string]any{"quantity": 2}, nil))
	require.Equal(t, http.StatusBadRequest, e.call(http.MethodPatch, "/api/cart/items/"+id,
		map[string]any{}, nil))
}

func TestCart_Clear(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 2))

	var c cartJSON
	require.Equal(t, http.StatusOK, e.call(http.MethodDelete, "/api/cart", nil, &c))
	assert.Empty(t, c.Items)
	assert.Empty(t, e.cart().Items)
}

func TestSession_CookieIsolatesCarts(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.addItem("BK-1", "physical", 1))

	other := e.newClient()
	var c cartJSON
	require.Equal(t, http.StatusOK, e.send(other, http.MethodGet, "/api/cart", nil, &c))
	assert.Empty(t, c.Items, "a new browser starts with an empty cart")

	assert.Len(t, e.cart().Items, 1)
	assert.Equal(t, 2, e.deps.Sessions.Len())
}

func TestSession_Cookie(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.srv.URL + "/api/cart")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "storefront_session" {
			found = c
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.HttpOnly)
	assert.Equal(t, "/", found.Path)
	assert.Equal(t, http.SameSiteLaxMode, found.SameSite)
	assert.Positive(t, found.MaxAge)
}

func TestSession_ReplacesInvalidCookie(t *testing.T) {
	e := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/api/cart", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: "../../etc/passwd"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == "storefront_session" {
			assert.NotEqual(t, "../../etc/passwd", c.Value)
			assert.False(t, strings.Contains(c.Value, "/"))
			return
		}
	}
	t.Fatal("session cookie not set")
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/auth"
	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/domain/money"
	"github.com/hcbookstore/storefront/internal/domain/order"
	"github.com/hcbookstore/storefront/internal/session"
	"github.com/hcbookstore/storefront/internal/storage"
	"github.com/hcbookstore/storefront/pkg/httpmiddleware"
)

// --- Fakes ---

type fakeCatalog struct {
	mu          sync.Mutex
	books       map[string]*catalog.Book
	err         error
	searched    catalog.SearchRequest
	suggestions []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{books: map[string]*catalog.Book{
		"BK-1": {
			Code:                 "BK-1",
			Title:                "Nhà giả kim",
			Authors:              []catalog.Person{{Name: "Paulo Coelho"}},
			Images:               []catalog.Image{{URL: "https://cdn/bk1.jpg", IsCover: true}},
			HasPhysicalEdition:   true,
			HasElectronicEdition: true,
			PhysicalPrice:        100000,
			ElectronicPrice:      40000,
		},
		"BK-2": {
			Code:               "BK-2",
			Title:              "Dế Mèn phiêu lưu ký",
			HasPhysicalEdition: true,
			PhysicalPrice:      79000,
		},
	}}
}

func (c *fakeCatalog) setPhysicalPrice(code string, price money.VND) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := *c.books[code]
	b.PhysicalPrice = price
	c.books[code] = &b
}

func (c *fakeCatalog) GetBook(_ context.Context, code string) (*catalog.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	b, ok := c.books[code]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (c *fakeCatalog) ListBooks(_ context.Context, page, size int) (*catalog.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &catalog.Page{Pagination: catalog.Pagination{CurrentPage: page, PageSize: size, TotalResults: len(c.books), TotalPages: 1}}
	for _, code := range []string{"BK-1", "BK-2"} {
		p.Books = append(p.Books, *c.books[code])
	}
	return p, nil
}

func (c *fakeCatalog) Search(_ context.Context, req catalog.SearchRequest) (*catalog.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searched = req
	return &catalog.SearchResult{
		Books:      []catalog.Book{*c.books["BK-1"]},
		Facets:     map[string][]catalog.Facet{"genre": {{Value: "novel", Count: 1}}},
		Pagination: catalog.Pagination{CurrentPage: 1, PageSize: 20, TotalResults: 1, TotalPages: 1},
	}, nil
}

func (c *fakeCatalog) ListAuthors(_ context.Context, page, size int) (*catalog.AuthorPage, error) {
	return &catalog.AuthorPage{
		Authors: []catalog.Author{
			{ID: 7, Name: "Paulo Coelho", Image: catalog.Image{URL: "https://cdn/coelho.jpg"}},
			{ID: 8, Name: "Nguyễn Nhật Ánh"},
		},
		Pagination: catalog.Pagination{CurrentPage: page, PageSize: size, TotalResults: 2, TotalPages: 1},
	}, nil
}

func (c *fakeCatalog) BooksByAuthor(_ context.Context, authorID int64, page, size int) (*catalog.AuthorBooks, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if authorID != 7 {
		return nil, nil
	}
	return &catalog.AuthorBooks{
		Author:     &catalog.Author{ID: 7, Name: "Paulo Coelho", Biography: "Brazilian novelist."},
		Books:      []catalog.Book{*c.books["BK-1"]},
		Pagination: catalog.Pagination{CurrentPage: page, PageSize: size, TotalResults: 1, TotalPages: 1},
	}, nil
}

func (c *fakeCatalog) Suggest(context.Context, string, int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suggestions, nil
}

type fakeDirectory struct{}

func (fakeDirectory) Provinces(context.Context) ([]address.Province, error) {
	return []address.Province{{ID: 201, Name: "Hà Nội"}, {ID: 202, Name: "Hồ Chí Minh"}}, nil
}

func (fakeDirectory) Districts(_ context.Context, provinceID int) ([]address.District, error) {
	return []address.District{{ID: 1442, ProvinceID: provinceID, Name: "Quận 1"}, {ID: 1443, ProvinceID: provinceID, Name: "Quận 2"}}, nil
}

func (fakeDirectory) Wards(_ context.Context, districtID int) ([]address.Ward, error) {
	return []address.Ward{{Code: "20101", DistrictID: districtID, Name: "Bến Nghé"}}, nil
}

func (fakeDirectory) Services(context.Context, int) ([]address.Service, error) {
	return []address.Service{{ServiceID: 53320, ServiceTypeID: 2, ShortName: "Chuẩn"}, {ServiceID: 53321, ServiceTypeID: 1, ShortName: "Nhanh"}}, nil
}

type fakeFees struct {
	mu    sync.Mutex
	quote checkout.Quote
	err   error
	reqs  []checkout.FeeRequest
}

func (f *fakeFees) CalculateFee(_ context.Context, req checkout.FeeRequest) (*checkout.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	q := f.quote
	return &q, nil
}

type fakeOrders struct {
	mu         sync.Mutex
	placeErr   error
	placed     []checkout.OrderRequest
	placeToken string
	paymentURL string
	paymentErr error

	page         *order.Page
	details      map[int64]*order.Details
	historyErr   error
	historyToken string
}

func (o *fakeOrders) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.Confirmation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := auth.TokenFrom(ctx); ok {
		o.placeToken = t.Value
	}
	if o.placeErr != nil {
		return nil, o.placeErr
	}
	o.placed = append(o.placed, req)
	return &checkout.Confirmation{OrderID: 77, OrderNumber: "HC-77", TotalAmount: 262000, Status: "PENDING"}, nil
}

func (o *fakeOrders) CreatePaymentURL(context.Context, int64) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paymentURL, o.paymentErr
}

func (o *fakeOrders) ListOrders(ctx context.Context, _, _ int) (*order.Page, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, _ := auth.TokenFrom(ctx)
	o.historyToken = t.Value
	if o.historyErr != nil {
		return nil, o.historyErr
	}
	return o.page, nil
}

func (o *fakeOrders) GetOrder(_ context.Context, id int64) (*order.Details, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.historyErr != nil {
		return nil, o.historyErr
	}
	d, ok := o.details[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return d, nil
}

type fakeAuth struct {
	mu        sync.Mutex
	loggedOut []string
}

func (a *fakeAuth) Login(_ context.Context, cr auth.Credentials) (*auth.Token, error) {
	if cr.Password != "secret" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Token{Value: "jwt-" + cr.Email, Type: "Bearer", User: auth.User{ID: 3, Email: cr.Email}}, nil
}

func (a *fakeAuth) Logout(_ context.Context, t auth.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut = append(a.loggedOut, t.Value)
	return nil
}

// --- Helpers ---

type testEnv struct {
	t       *testing.T
	srv     *httptest.Server
	client  *http.Client
	kv      storage.KV
	catalog *fakeCatalog
	fees    *fakeFees
	orders  *fakeOrders
	auth    *fakeAuth
	deps    Deps
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	e := &testEnv{
		t:       t,
		kv:      storage.NewMemory(),
		catalog: newFakeCatalog(),
		fees:    &fakeFees{quote: checkout.Quote{Total: 32000, ServiceFee: 30000, ExpectedDeliveryTime: "2024-01-05"}},
		orders:  &fakeOrders{paymentURL: "https://pay.example.com/vpcpay?vnp_TxnRef=HC-77", page: order.EmptyPage(10)},
		auth:    &fakeAuth{},
	}
	e.start(opts...)
	e.client = e.newClient()
	return e
}

// replica starts another server over the same storage and upstream fakes,
// reached by the same browser, like a second process behind a load balancer
// or the same process after a restart.
func (e *testEnv) replica() *testEnv {
	e.t.Helper()
	r := &testEnv{
		t:       e.t,
		kv:      e.kv,
		catalog: e.catalog,
		fees:    e.fees,
		orders:  e.orders,
		auth:    e.auth,
		client:  e.client,
	}
	r.start()
	return r
}

func (e *testEnv) start(opts ...envOption) {
	t := e.t
	t.Helper()
	sessions, err := session.NewManager(e.kv, session.Deps{
		Catalog:      e.catalog,
		Directory:    fakeDirectory{},
		SuggestDelay: time.Millisecond,
	}, time.Hour, zap.NewNop(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	svc, err := checkout.NewService(e.fees, e.orders, e.orders, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	e.deps = Deps{
		Sessions: sessions,
		Catalog:  e.catalog,
		Checkout: svc,
		Orders:   e.orders,
		Auth:     e.auth,
	}
	for _, o := range opts {
		o(&e.deps)
	}

	h, err := New(Config{}, e.deps, metricnoop.NewMeterProvider())
	require.NoError(t, err)
	e.srv = httptest.NewServer(httpmiddleware.Wrap(h.Router(), httpmiddleware.InjectLogger(zap.NewNop())))
	t.Cleanup(e.srv.Close)
}

// newClient returns a client with its own cookie jar, i.e. a new browser.
func (e *testEnv) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) send(c *http.Client, method, path string, body, out any) int {
	e.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) call(method, path string, body, out any) int {
	e.t.Helper()
	return e.send(e.client, method, path, body, out)
}

func (e *testEnv) addItem(code, format string, qty int) int {
	e.t.Helper()
	return e.call(http.MethodPost, "/api/cart/items", map[string]any{"bookCode": code, "format": format, "quantity": qty}, nil)
}

// selectAddress completes the zone selection 202 / 1442 / 20101.
func (e *testEnv) selectAddress() {
	e.t.Helper()
	require.Equal(e.t, http.StatusOK, e.call(http.MethodGet, "/api/checkout/address", nil, nil))
	require.Equal(e.t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/province", map[string]any{"id": 202}, nil))
	require.Equal(e.t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/district", map[string]any{"id": 1442}, nil))
	require.Equal(e.t, http.StatusOK, e.call(http.MethodPost, "/api/checkout/address/ward", map[string]any{"code": "20101"}, nil))
}

func (e *testEnv) login() {
	e.t.Helper()
	require.Equal(e.t, http.StatusOK, e.call(http.MethodPost, "/api/auth/login",
		auth.Credentials{Email: "c@example.com", Password: "secret"}, nil))
}

func (e *testEnv) cart() cartJSON {
	e.t.Helper()
	var c cartJSON
	require.Equal(e.t, http.StatusOK, e.call(http.MethodGet, "/api/cart", nil, &c))
	return c
}

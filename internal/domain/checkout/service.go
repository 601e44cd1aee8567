package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/cart"
	"github.com/hcbookstore/storefront/internal/domain/money"
)

// Shipping weight estimate: a fixed floor plus a fixed weight per physical
// unit, in grams.
const (
	BaseWeight    = 1000
	WeightPerUnit = 500
)

// FeeQuoter quotes delivery fees.
type FeeQuoter interface {
	CalculateFee(ctx context.Context, req FeeRequest) (*Quote, error)
}

// OrderPlacer creates orders.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Confirmation, error)
}

// PaymentLinker creates gateway redirect URLs for placed orders.
type PaymentLinker interface {
	CreatePaymentURL(ctx context.Context, orderID int64) (string, error)
}

// CartStore is the part of the cart store checkout drives.
type CartStore interface {
	Snapshot() cart.Cart
	SetShippingEstimate(ctx context.Context, amount money.VND)
	Clear(ctx context.Context)
}

// AddressCascade is the part of the address cascade checkout reads.
type AddressCascade interface {
	Selection() address.Selection
	Version() uint64
}

// Session is the per-session state a checkout operates on.
type Session struct {
	Cart    CartStore
	Address AddressCascade
	Drafts  *DraftStore
}

// Weight estimates the parcel weight of c in grams.
func Weight(c cart.Cart) int {
	return BaseWeight + WeightPerUnit*c.PhysicalUnits()
}

// Service orchestrates fee quotes and order submission.
type Service struct {
	fees     FeeQuoter
	orders   OrderPlacer
	payments PaymentLinker

	tracer trace.Tracer
	quotes metric.Int64Counter
	placed metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	fees FeeQuoter,
	orders OrderPlacer,
	payments PaymentLinker,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("storefront/checkout")
	quotes, err := meter.Int64Counter("checkout.fee.quotes",
		metric.WithDescription("Delivery fee quote attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	placed, err := meter.Int64Counter("checkout.orders.placed",
		metric.WithDescription("Orders placed by payment method"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}

	return &Service{
		fees:     fees,
		orders:   orders,
		payments: payments,
		tracer:   tp.Tracer("storefront/checkout"),
		quotes:   quotes,
		placed:   placed,
	}, nil
}

// RecomputeFee refreshes the cart's shipping estimate.
//
// Until the address selection is complete the flat cost of method is applied
// and returned as a fallback quote. Otherwise a quote is requested; on failure
// the estimate is left unchanged. A quote that arrives after the selection or
// the cart weight changed is dropped with address.ErrSuperseded.
func (s *Service) RecomputeFee(ctx context.Context, sess Session, method ShippingMethod) (Quote, error) {
	if !method.Valid() {
		method = ShippingStandard
	}

	version := sess.Address.Version()
	sel := sess.Address.Selection()
	if !sel.Complete() {
		q := Quote{Total: method.FlatCost(), Fallback: true}
		sess.Cart.SetShippingEstimate(ctx, q.Total)
		return q, nil
	}

	weight := Weight(sess.Cart.Snapshot())
	ctx, span := s.tracer.Start(ctx, "checkout.RecomputeFee", trace.WithAttributes(
		attribute.Int("district_id", sel.DistrictID),
		attribute.Int("weight", weight),
		attribute.Int("service_type_id", sel.ServiceTypeID),
	))
	defer span.End()

	q, err := s.fees.CalculateFee(ctx, FeeRequest{
		DistrictID:    sel.DistrictID,
		WardCode:      sel.WardCode,
		Weight:        weight,
		ServiceTypeID: sel.ServiceTypeID,
	})
	if err != nil {
		s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Quote{}, errors.Wrap(err, "calculate fee")
	}

	if sess.Address.Version() != version || Weight(sess.Cart.Snapshot()) != weight {
		s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "stale")))
		return Quote{}, address.ErrSuperseded
	}

	s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	sess.Cart.SetShippingEstimate(ctx, q.Total)
	return *q, nil
}

// Submit validates the form, places the order and, for online payment,
// obtains the gateway redirect. The cart and draft are cleared only once the
// customer can proceed: immediately for COD, after a payment URL was obtained
// for VNPAY.
func (s *Service) Submit(ctx context.Context, sess Session, req SubmitRequest) (*Confirmation, error) {
	snap := sess.Cart.Snapshot()
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	sel := sess.Address.Selection()
	req.ShippingAddress.ProvinceID = sel.ProvinceID
	req.ShippingAddress.DistrictID = sel.DistrictID
	req.ShippingAddress.WardCode = sel.WardCode
	if err := Validate(req); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "checkout.Submit", trace.WithAttributes(
		attribute.String("payment_method", string(req.PaymentMethod)),
		attribute.Int("items", len(snap.Items)),
	))
	defer span.End()

	conf, err := s.orders.CreateOrder(ctx, buildOrderRequest(snap, sel, req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order placement failed")
		return nil, &OrderPlacementError{Err: err}
	}
	span.SetAttributes(attribute.String("order_number", conf.OrderNumber))

	lg := zctx.From(ctx).With(
		zap.Int64("order_id", conf.OrderID),
		zap.String("order_number", conf.OrderNumber),
	)

	if req.PaymentMethod == PaymentVNPay && conf.PaymentURL == "" {
		u, err := s.payments.CreatePaymentURL(ctx, conf.OrderID)
		if err != nil {
			lg.Warn("Payment setup failed for placed order", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "payment setup failed")
			return nil, &PaymentSetupError{OrderID: conf.OrderID, OrderNumber: conf.OrderNumber, Err: err}
		}
		conf.PaymentURL = u
	}
	if req.PaymentMethod == PaymentCOD {
		conf.PaymentURL = ""
	}

	sess.Cart.Clear(ctx)
	if sess.Drafts != nil {
		sess.Drafts.Clear(ctx)
	}
	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(req.PaymentMethod))))
	lg.Info("Order placed")

	return conf, nil
}

func buildOrderRequest(c cart.Cart, sel address.Selection, req SubmitRequest) OrderRequest {
	items := make([]OrderItem, len(c.Items))
	for i, li := range c.Items {
		items[i] = OrderItem{
			BookCode: li.BookID,
			Quantity: li.Quantity,
			ItemType: itemTypeOf(li.Format),
		}
	}

	serviceTypeID := sel.ServiceTypeID
	if serviceTypeID == 0 {
		serviceTypeID = req.ShippingMethod.ServiceTypeID()
	}

	out := OrderRequest{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		ServiceTypeID:   serviceTypeID,
		PaymentMethod:   req.PaymentMethod,
	}
	if req.Customer != (Customer{}) {
		customer := req.Customer
		out.Customer = &customer
	}
	return out
}

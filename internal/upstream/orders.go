package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/domain/order"
)

var (
	_ checkout.OrderPlacer   = (*Client)(nil)
	_ checkout.PaymentLinker = (*Client)(nil)
	_ order.History          = (*Client)(nil)
)

// mapAccessError translates authorization statuses to the order taxonomy.
func mapAccessError(err error) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.StatusCode {
	case http.StatusUnauthorized:
		return order.ErrAuthRequired
	case http.StatusForbidden:
		return order.ErrAccessDenied
	case http.StatusNotFound:
		return order.ErrNotFound
	default:
		return err
	}
}

// CreateOrder submits an order.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.Confirmation, error) {
	var conf checkout.Confirmation
	err := c.getData(ctx, request{method: http.MethodPost, path: "/checkout/orders", body: encodeOrder(req)}, func(d *jx.Decoder) error {
		return readObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "orderid":
				conf.OrderID, err = readInt64(d)
			case "ordernumber":
				conf.OrderNumber, err = readString(d)
			case "totalamount":
				conf.TotalAmount, err = readVND(d)
			case "status":
				conf.Status, err = readString(d)
			case "paymenturl":
				conf.PaymentURL, err = readString(d)
			default:
				err = d.Skip()
			}
			return err
		})
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			return nil, order.ErrAuthRequired
		}
		return nil, errors.Wrap(err, "create order")
	}
	return &conf, nil
}

func encodeOrder(req checkout.OrderRequest) []byte {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range req.Items {
		e.ObjStart()
		e.FieldStart("bookCode")
		e.Str(it.BookCode)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("itemType")
		e.Str(string(it.ItemType))
		e.ObjEnd()
	}
	e.ArrEnd()

	a := req.ShippingAddress
	e.FieldStart("shippingAddress")
	e.ObjStart()
	e.FieldStart("fullName")
	e.Str(a.FullName)
	e.FieldStart("phone")
	e.Str(a.Phone)
	e.FieldStart("address")
	e.Str(a.Address)
	if a.City != "" {
		e.FieldStart("city")
		e.Str(a.City)
	}
	if a.PostalCode != "" {
		e.FieldStart("postalCode")
		e.Str(a.PostalCode)
	}
	e.FieldStart("provinceId")
	e.Int(a.ProvinceID)
	e.FieldStart("districtId")
	e.Int(a.DistrictID)
	e.FieldStart("wardCode")
	e.Str(a.WardCode)
	e.ObjEnd()

	e.FieldStart("shippingMethod")
	e.Str(string(req.ShippingMethod))
	if req.ServiceTypeID != 0 {
		e.FieldStart("serviceTypeId")
		e.Int(req.ServiceTypeID)
	}
	e.FieldStart("paymentMethod")
	e.Str(string(req.PaymentMethod))
	if cu := req.Customer; cu != nil {
		e.FieldStart("customerInfo")
		e.ObjStart()
		e.FieldStart("email")
		e.Str(cu.Email)
		e.FieldStart("fullName")
		e.Str(cu.FullName)
		e.FieldStart("phone")
		e.Str(cu.Phone)
		e.ObjEnd()
	}

	e.ObjEnd()
	return e.Bytes()
}

// CreatePaymentURL asks the API for the VNPay redirect of a placed order.
func (c *Client) CreatePaymentURL(ctx context.Context, orderID int64) (string, error) {
	var u string
	err := c.getData(ctx, request{
		method: http.MethodGet,
		path:   "/payment/create-payment/" + strconv.FormatInt(orderID, 10),
	}, func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return errors.New("payment url is not a string")
		}
		var err error
		u, err = d.Str()
		return err
	})
	if err == nil && u == "" {
		err = ErrNoData
	}
	if err != nil {
		return "", errors.Wrap(err, "create payment url")
	}
	return u, nil
}

// ListOrders returns a page of the customer's order history.
func (c *Client) ListOrders(ctx context.Context, page, size int) (*order.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	out := order.Page{Orders: []order.Summary{}}
	err := c.getData(ctx, request{method: http.MethodGet, path: "/customer/orders", query: q}, func(d *jx.Decoder) error {
		return readObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "content":
				err = readArray(d, func(d *jx.Decoder) error {
					s, err := decodeSummary(d)
					if err != nil {
						return err
					}
					out.Orders = append(out.Orders, s)
					return nil
				})
			case "totalelements":
				out.TotalElements, err = readInt(d)
			case "totalpages":
				out.TotalPages, err = readInt(d)
			case "size":
				out.Size, err = readInt(d)
			case "number":
				out.Number, err = readInt(d)
			case "first":
				out.First, err = readBool(d)
			case "last":
				out.Last, err = readBool(d)
			default:
				err = d.Skip()
			}
			return err
		})
	})
	if errors.Is(err, ErrNoData) {
		return order.EmptyPage(size), nil
	}
	if err != nil {
		return nil, errors.Wrap(mapAccessError(err), "list orders")
	}
	return &out, nil
}

// GetOrder returns one order of the customer.
func (c *Client) GetOrder(ctx context.Context, id int64) (*order.Details, error) {
	var o order.Details
	err := c.getData(ctx, request{
		method: http.MethodGet,
		path:   "/customer/orders/" + strconv.FormatInt(id, 10),
	}, func(d *jx.Decoder) error {
		return decodeDetails(d, &o)
	})
	if errors.Is(err, ErrNoData) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(mapAccessError(err), "get order")
	}
	return &o, nil
}

func decodeSummary(d *jx.Decoder) (order.Summary, error) {
	var s order.Summary
	err := readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			s.ID, err = readInt64(d)
		case "ordernumber":
			s.OrderNumber, err = readString(d)
		case "createdat":
			s.CreatedAt, err = readTime(d)
		case "status":
			s.Status, err = readString(d)
		case "paymentstatus":
			s.PaymentStatus, err = readString(d)
		case "totalamount":
			s.TotalAmount, err = readVND(d)
		case "itemcount":
			s.ItemCount, err = readInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return s, err
}

func decodeDetails(d *jx.Decoder, o *order.Details) error {
	o.Items = []order.Item{}
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = readInt64(d)
		case "ordernumber":
			o.OrderNumber, err = readString(d)
		case "createdat":
			o.CreatedAt, err = readTime(d)
		case "updatedat":
			o.UpdatedAt, err = readTime(d)
		case "status":
			o.Status, err = readString(d)
		case "paymentstatus":
			o.PaymentStatus, err = readString(d)
		case "paymentmethod":
			o.PaymentMethod, err = readString(d)
		case "ordertype":
			o.OrderType, err = readString(d)
		case "subtotal":
			o.Subtotal, err = readVND(d)
		case "shippingamount":
			o.ShippingAmount, err = readVND(d)
		case "taxamount":
			o.TaxAmount, err = readVND(d)
		case "discountamount":
			o.DiscountAmount, err = readVND(d)
		case "totalamount":
			o.TotalAmount, err = readVND(d)
		case "shippingaddress":
			o.ShippingAddress, err = readRaw(d)
		case "notes":
			o.Notes, err = readString(d)
		case "items":
			err = readArray(d, func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "deliveryinfo":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o.Delivery = &order.Delivery{}
			err = decodeDelivery(d, o.Delivery)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = readInt64(d)
		case "bookcode":
			it.BookCode, err = readString(d)
		case "booktitle":
			it.BookTitle, err = readString(d)
		case "itemtype":
			it.ItemType, err = readString(d)
		case "quantity":
			it.Quantity, err = readInt(d)
		case "unitprice":
			it.UnitPrice, err = readVND(d)
		case "totalprice":
			it.TotalPrice, err = readVND(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func decodeDelivery(d *jx.Decoder, del *order.Delivery) error {
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "provinceid":
			del.ProvinceID, err = readInt(d)
		case "districtid":
			del.DistrictID, err = readInt(d)
		case "wardcode":
			del.WardCode, err = readString(d)
		case "servicetypeid":
			del.ServiceTypeID, err = readInt(d)
		case "serviceid":
			del.ServiceID, err = readInt(d)
		case "expecteddeliverytime":
			del.ExpectedDeliveryTime, err = readString(d)
		case "ghnordercode":
			del.TrackingCode, err = readString(d)
		case "weight":
			del.Weight, err = readInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// readRaw returns a string value as is and any other value as raw JSON.
// The API sends addresses as JSON-encoded strings or as objects.
func readRaw(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		raw, err := d.Raw()
		return string(raw), err
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func readTime(d *jx.Decoder) (time.Time, error) {
	s, err := readString(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unsupported time %q", s)
}

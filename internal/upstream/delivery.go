package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/checkout"
)

var (
	_ address.Directory  = (*Client)(nil)
	_ checkout.FeeQuoter = (*Client)(nil)
)

// Provinces lists GHN provinces. Entries without an id are dropped.
func (c *Client) Provinces(ctx context.Context) ([]address.Province, error) {
	var out []address.Province
	err := c.getData(ctx, request{method: http.MethodGet, path: "/checkout/ghn/provinces"}, func(d *jx.Decoder) error {
		return readArray(d, func(d *jx.Decoder) error {
			var p address.Province
			if err := readObject(d, func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "provinceid":
					p.ID, err = readInt(d)
				case "provincename":
					p.Name, err = readString(d)
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			if p.ID != 0 {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "list provinces")
	}
	return out, nil
}

// Districts lists the districts of a province.
func (c *Client) Districts(ctx context.Context, provinceID int) ([]address.District, error) {
	q := url.Values{}
	q.Set("provinceId", strconv.Itoa(provinceID))

	var out []address.District
	err := c.getData(ctx, request{method: http.MethodGet, path: "/checkout/ghn/districts", query: q}, func(d *jx.Decoder) error {
		return readArray(d, func(d *jx.Decoder) error {
			dist := address.District{ProvinceID: provinceID}
			if err := readObject(d, func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "districtid":
					dist.ID, err = readInt(d)
				case "districtname":
					dist.Name, err = readString(d)
				case "provinceid":
					var id int
					id, err = readInt(d)
					if id != 0 {
						dist.ProvinceID = id
					}
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			if dist.ID != 0 {
				out = append(out, dist)
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "list districts")
	}
	return out, nil
}

// Wards lists the wards of a district.
func (c *Client) Wards(ctx context.Context, districtID int) ([]address.Ward, error) {
	q := url.Values{}
	q.Set("districtId", strconv.Itoa(districtID))

	var out []address.Ward
	err := c.getData(ctx, request{method: http.MethodGet, path: "/checkout/ghn/wards", query: q}, func(d *jx.Decoder) error {
		return readArray(d, func(d *jx.Decoder) error {
			w := address.Ward{DistrictID: districtID}
			if err := readObject(d, func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "wardcode":
					w.Code, err = readString(d)
				case "wardname":
					w.Name, err = readString(d)
				case "districtid":
					var id int
					id, err = readInt(d)
					if id != 0 {
						w.DistrictID = id
					}
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			if w.Code != "" {
				out = append(out, w)
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "list wards")
	}
	return out, nil
}

// Services lists the delivery services available for a district.
func (c *Client) Services(ctx context.Context, districtID int) ([]address.Service, error) {
	q := url.Values{}
	q.Set("districtId", strconv.Itoa(districtID))

	var out []address.Service
	err := c.getData(ctx, request{method: http.MethodGet, path: "/checkout/ghn/services", query: q}, func(d *jx.Decoder) error {
		return readArray(d, func(d *jx.Decoder) error {
			var s address.Service
			if err := readObject(d, func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "serviceid", "service_id":
					s.ServiceID, err = readInt(d)
				case "servicetypeid", "service_type_id":
					s.ServiceTypeID, err = readInt(d)
				case "shortname", "short_name":
					s.ShortName, err = readString(d)
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			if s.ServiceTypeID != 0 {
				out = append(out, s)
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, errors.Wrap(err, "list services")
	}
	return out, nil
}

// CalculateFee quotes the delivery fee for a parcel.
func (c *Client) CalculateFee(ctx context.Context, req checkout.FeeRequest) (*checkout.Quote, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("districtId")
	e.Int(req.DistrictID)
	e.FieldStart("wardCode")
	e.Str(req.WardCode)
	e.FieldStart("weight")
	e.Int(req.Weight)
	if req.ServiceTypeID != 0 {
		e.FieldStart("serviceTypeId")
		e.Int(req.ServiceTypeID)
	}
	e.ObjEnd()

	var q checkout.Quote
	err := c.getData(ctx, request{method: http.MethodPost, path: "/checkout/ghn/calculate-fee", body: e.Bytes()}, func(d *jx.Decoder) error {
		return readObject(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "total":
				q.Total, err = readVND(d)
			case "servicefee", "service_fee":
				q.ServiceFee, err = readVND(d)
			case "expecteddeliverytime":
				q.ExpectedDeliveryTime, err = readString(d)
			default:
				err = d.Skip()
			}
			return err
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "calculate fee")
	}
	return &q, nil
}

package upstream

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/hcbookstore/storefront/internal/domain/auth"
)

var _ auth.Authenticator = (*Client)(nil)

// Login exchanges credentials for a token. The login endpoint replies with
// the token object directly, not wrapped in an envelope; wrapped replies are
// accepted too.
func (c *Client) Login(ctx context.Context, cr auth.Credentials) (*auth.Token, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("email")
	e.Str(cr.Email)
	e.FieldStart("password")
	e.Str(cr.Password)
	e.ObjEnd()

	data, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: e.Bytes()})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusBadRequest) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "login")
	}

	var t auth.Token
	if err := decodeToken(jx.DecodeBytes(data), &t); err != nil {
		return nil, errors.Wrap(err, "decode login")
	}
	if t.Value == "" {
		return nil, errors.Wrap(ErrNoData, "login")
	}
	return &t, nil
}

func decodeToken(d *jx.Decoder, t *auth.Token) error {
	return readObject(d, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "data":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return decodeToken(d, t)
		case "token":
			t.Value, err = readString(d)
		case "type":
			t.Type, err = readString(d)
		case "id":
			t.User.ID, err = readInt64(d)
		case "email":
			t.User.Email, err = readString(d)
		case "firstname":
			t.User.FirstName, err = readString(d)
		case "lastname":
			t.User.LastName, err = readString(d)
		case "roles":
			t.User.Roles, err = readStrings(d)
		case "usertype":
			t.User.UserType, err = readString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Logout revokes t upstream.
func (c *Client) Logout(ctx context.Context, t auth.Token) error {
	ctx = auth.WithToken(ctx, t)
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout", body: []byte("{}")}); err != nil {
		return errors.Wrap(err, "logout")
	}
	return nil
}

// Package upstream is the client of the bookstore REST API: catalog, GHN
// delivery zones and fees, orders, payments and authentication.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/auth"
)

const maxBodySize = 4 << 20

// ErrNoData is returned when a response envelope carries no data.
var ErrNoData = errors.New("response has no data")

// StatusError is a non-2xx response of the API.
type StatusError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("upstream %d (%s): %s", e.StatusCode, e.ErrorCode, msg)
	}
	return fmt.Sprintf("upstream %d: %s", e.StatusCode, msg)
}

// APIError is a 2xx response whose envelope reports an error code.
type APIError struct {
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %s: %s", e.ErrorCode, e.Message)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Consecutive failures before the breaker opens.
	BreakerFailures uint32
	// How long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// Client calls the bookstore API. Calls go through a circuit breaker; 4xx
// responses do not count as failures.
type Client struct {
	base *url.URL
	http *http.Client
	cb   *gobreaker.CircuitBreaker[[]byte]
	lg   *zap.Logger
}

// New creates a Client.
func New(cfg Config, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
		lg: lg,
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "upstream",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	return c, nil
}

// Ready reports an error while the circuit breaker is open.
func (c *Client) Ready(context.Context) error {
	if c.cb.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}
	return nil
}

func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < http.StatusInternalServerError
	}
	var ae *APIError
	return errors.As(err, &ae)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

// do sends the request and returns the raw response body of a 2xx reply.
// The session token in ctx, if any, is sent as the Authorization header.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		u := *c.base
		u.Path += r.path
		if len(r.query) > 0 {
			u.RawQuery = r.query.Encode()
		}

		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")
		if r.body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if t, ok := auth.TokenFrom(ctx); ok {
			req.Header.Set("Authorization", t.Header())
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, errors.Wrap(err, "read body")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			se := &StatusError{StatusCode: resp.StatusCode}
			se.ErrorCode, se.Message = errorFields(data)
			zctx.From(ctx).Debug("Upstream error response",
				zap.String("method", r.method),
				zap.String("path", r.path),
				zap.Int("status", resp.StatusCode),
				zap.String("message", se.Message),
			)
			return nil, se
		}
		return data, nil
	})
}

// errorFields extracts errorCode and message from an error body. Bodies that
// are not JSON objects yield empty strings.
func errorFields(data []byte) (code, message string) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return "", ""
	}
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "errorCode":
			s, err := readString(d)
			code = s
			return err
		case "message":
			s, err := readString(d)
			message = s
			return err
		case "error":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) == "message" && message == "" {
					s, err := readString(d)
					message = s
					return err
				}
				return d.Skip()
			})
		default:
			return d.Skip()
		}
	})
	return code, message
}

// getData performs r and decodes the envelope's data field with fn.
func (c *Client) getData(ctx context.Context, r request, fn func(d *jx.Decoder) error) error {
	data, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	return decodeEnvelope(data, fn)
}

// decodeEnvelope decodes {errorCode?, message?, data}. A non-empty error code
// is reported as *APIError; a missing or null data field as ErrNoData.
func decodeEnvelope(data []byte, fn func(d *jx.Decoder) error) error {
	var (
		code, message string
		found         bool
	)
	d := jx.DecodeBytes(data)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "errorCode":
			s, err := readString(d)
			code = s
			return err
		case "message":
			s, err := readString(d)
			message = s
			return err
		case "data":
			if d.Next() == jx.Null {
				return d.Null()
			}
			found = true
			return fn(d)
		default:
			return d.Skip()
		}
	}); err != nil {
		return errors.Wrap(err, "decode response")
	}

	if code != "" && !found {
		return &APIError{ErrorCode: code, Message: message}
	}
	if !found {
		return ErrNoData
	}
	return nil
}

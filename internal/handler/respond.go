package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/auth"
	"github.com/hcbookstore/storefront/internal/domain/cart"
	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/domain/order"
	"github.com/hcbookstore/storefront/internal/session"
	"github.com/hcbookstore/storefront/internal/upstream"
)

const maxRequestBody = 64 << 10

var errBadBody = errors.New("malformed request body")

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	// Redirect tells the client where to navigate instead of showing an error.
	Redirect    string `json:"redirect,omitempty"`
	OrderID     int64  `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

// statusError is a handler-level failure with a fixed status.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func badRequest(msg string) error { return &statusError{status: http.StatusBadRequest, msg: msg} }

func notFound(msg string) error { return &statusError{status: http.StatusNotFound, msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	d := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := d.Decode(v); err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badRequest(key + " must be a non-negative integer")
	}
	return n, nil
}

// fail writes the response for err. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := mapError(err)
	if resp.Code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Warn("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.Code),
			zap.Error(err),
		)
	}
	writeJSON(w, resp.Code, resp)
}

// mapError converts domain and upstream errors to a response.
func mapError(err error) errorResponse {
	var (
		se  *statusError
		ve  *checkout.ValidationError
		qe  *cart.InvalidQuantityError
		pe  *cart.InvalidPriceError
		ope *checkout.OrderPlacementError
		pse *checkout.PaymentSetupError
		fe  *address.FetchError
		ust *upstream.StatusError
		uae *upstream.APIError
	)
	switch {
	case errors.As(err, &se):
		return errorResponse{Code: se.status, Message: se.msg}
	case errors.Is(err, errBadBody), errors.Is(err, session.ErrInvalidID):
		return errorResponse{Code: http.StatusBadRequest, Message: err.Error()}

	case errors.As(err, &ve):
		return errorResponse{Code: http.StatusUnprocessableEntity, Message: "please correct the highlighted fields", Fields: ve.Fields}
	case errors.As(err, &qe), errors.As(err, &pe),
		errors.Is(err, cart.ErrInvalidFormat),
		errors.Is(err, cart.ErrBookRequired),
		errors.Is(err, cart.ErrPriceRequired):
		return errorResponse{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, cart.ErrItemNotFound):
		return errorResponse{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, checkout.ErrEmptyCart):
		return errorResponse{Code: http.StatusConflict, Message: "your cart is empty"}

	case errors.Is(err, address.ErrUnknownOption):
		return errorResponse{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, address.ErrLevelNotReady),
		errors.Is(err, address.ErrSuperseded),
		errors.Is(err, catalog.ErrSuperseded):
		return errorResponse{Code: http.StatusConflict, Message: err.Error()}

	case errors.Is(err, order.ErrAuthRequired):
		return errorResponse{Code: http.StatusUnauthorized, Message: "please sign in to continue", Redirect: "/auth"}
	case errors.Is(err, order.ErrAccessDenied):
		return errorResponse{Code: http.StatusForbidden, Message: "you do not have access to this order", Redirect: "/orders"}
	case errors.Is(err, order.ErrNotFound):
		return errorResponse{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return errorResponse{Code: http.StatusUnauthorized, Message: err.Error()}

	case errors.As(err, &pse):
		return errorResponse{
			Code:        http.StatusBadGateway,
			Message:     "your order was placed but the payment could not be started",
			OrderID:     pse.OrderID,
			OrderNumber: pse.OrderNumber,
		}
	case errors.As(err, &ope):
		// Client errors of the order API carry a message for the customer.
		if errors.As(ope.Err, &ust) && ust.StatusCode < http.StatusInternalServerError && ust.Message != "" {
			return errorResponse{Code: http.StatusUnprocessableEntity, Message: ust.Message}
		}
		resp := mapError(ope.Err)
		if resp.Code >= http.StatusInternalServerError {
			resp.Message = "the order could not be placed, please try again"
		}
		return resp

	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return errorResponse{Code: http.StatusServiceUnavailable, Message: "service temporarily unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse{Code: http.StatusGatewayTimeout, Message: "upstream timed out"}
	case errors.As(err, &fe), errors.As(err, &ust), errors.As(err, &uae), errors.Is(err, upstream.ErrNoData):
		return errorResponse{Code: http.StatusBadGateway, Message: "upstream request failed"}
	default:
		return errorResponse{Code: http.StatusInternalServerError, Message: "internal error"}
	}
}

// Package payment classifies the VNPay gateway return redirect.
package payment

import (
	"net/url"
)

// Status is the outcome of a gateway payment.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Gateway return parameters.
const (
	ParamResponseCode      = "vnp_ResponseCode"
	ParamTransactionStatus = "vnp_TransactionStatus"
	ParamTxnRef            = "vnp_TxnRef"
	ParamSecureHash        = "vnp_SecureHash"
	ParamSecureHashType    = "vnp_SecureHashType"
)

const codeSuccess = "00"

var failureMessages = map[string]string{
	"07": "Amount deducted. The transaction is suspected of fraud or is unusual.",
	"09": "The card or account is not registered for internet banking.",
	"10": "Authentication failed: payment password or OTP entered incorrectly more than 3 times.",
	"11": "The payment window expired. Please try again.",
	"12": "The card or account is locked.",
	"13": "Incorrect transaction authentication password (OTP).",
	"51": "The account has insufficient balance for this transaction.",
	"65": "The account has exceeded its daily transaction limit.",
	"75": "The paying bank is under maintenance.",
	"79": "Payment password entered incorrectly too many times.",
}

// Result is a classified gateway return.
type Result struct {
	Status  Status `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	// TxnRef is the order reference echoed back by the gateway.
	TxnRef string `json:"orderNumber,omitempty"`
}

// ParseReturn classifies the query of a gateway return redirect.
//
// Response code "00" with transaction status "00" is a success. Any other
// non-empty response code is a failure. Everything else, including a missing
// response code, is pending.
func ParseReturn(q url.Values) Result {
	code := q.Get(ParamResponseCode)
	r := Result{
		Code:   code,
		TxnRef: q.Get(ParamTxnRef),
	}

	switch {
	case code == codeSuccess && q.Get(ParamTransactionStatus) == codeSuccess:
		r.Status = StatusSuccess
		r.Message = "Payment successful. Your order has been confirmed."
	case code != "" && code != codeSuccess:
		r.Status = StatusFailed
		r.Message = FailureMessage(code)
	default:
		r.Status = StatusPending
		r.Message = "Processing payment result..."
	}
	return r
}

// FailureMessage returns the customer-facing text for a gateway response code.
func FailureMessage(code string) string {
	if msg, ok := failureMessages[code]; ok {
		return msg
	}
	return "Payment failed. Error code: " + code
}

package checkout

import (
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var phonePattern = regexp.MustCompile(`^\d{10,11}$`)

// ValidationError lists field-level problems keyed by form path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("invalid checkout form:")
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Fields[k])
		b.WriteString(";")
	}
	return b.String()
}

// Validate checks a submitted form. It returns *ValidationError or nil.
func Validate(req SubmitRequest) error {
	fields := make(map[string]string)
	a := req.ShippingAddress

	switch n := utf8.RuneCountInString(strings.TrimSpace(a.FullName)); {
	case n < 2:
		fields["shippingAddress.fullName"] = "name must be at least 2 characters"
	case n > 100:
		fields["shippingAddress.fullName"] = "name must be at most 100 characters"
	}
	if !phonePattern.MatchString(a.Phone) {
		fields["shippingAddress.phone"] = "phone must be 10-11 digits"
	}
	switch n := utf8.RuneCountInString(strings.TrimSpace(a.Address)); {
	case n < 5:
		fields["shippingAddress.address"] = "address must be at least 5 characters"
	case n > 200:
		fields["shippingAddress.address"] = "address must be at most 200 characters"
	}
	if a.ProvinceID == 0 || a.DistrictID == 0 || a.WardCode == "" {
		fields["shippingAddress.wardCode"] = "select province, district and ward"
	}

	if !req.ShippingMethod.Valid() {
		fields["shippingMethod"] = "select a shipping method"
	}
	if !req.PaymentMethod.Valid() {
		fields["paymentMethod"] = "select a payment method"
	}
	if req.Customer.Email != "" {
		if _, err := mail.ParseAddress(req.Customer.Email); err != nil {
			fields["customerInfo.email"] = "invalid email address"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidSignature is returned when the return query was not signed with
// the configured secret.
var ErrInvalidSignature = errors.New("invalid payment signature")

// Verifier checks the vnp_SecureHash signature of a gateway return.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for the merchant hash secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify reports ErrInvalidSignature unless q carries a valid signature.
func (v *Verifier) Verify(q url.Values) error {
	got := q.Get(ParamSecureHash)
	if got == "" {
		return errors.Wrap(ErrInvalidSignature, "signature missing")
	}
	want := v.Sign(q)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the hex HMAC-SHA512 over the sorted vnp_ parameters,
// excluding the signature fields.
func (v *Verifier) Sign(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if !strings.HasPrefix(k, "vnp_") || k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		if q.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q.Get(k)))
	}

	mac := hmac.New(sha512.New, v.secret)
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Package signature verifies payment-provider webhook signatures.
//
// The provider signs "{timestamp}.{rawBody}" with HMAC-SHA256 and sends the
// result in a header of the form "t=<unix-ts>,te=<test-sig>,li=<live-sig>".
// The live signature is preferred whenever it is non-empty.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"courtbook/internal/pkg/errs"
)

var (
	ErrMalformedHeader  = errs.New("malformed signature header")
	ErrSignatureMissing = errs.New("signature missing from header")
	ErrMismatch         = errs.New("signature mismatch")
)

type Header struct {
	Timestamp string
	Test      string
	Live      string
}

func ParseHeader(raw string) (Header, error) {
	var h Header
	if strings.TrimSpace(raw) == "" {
		return h, ErrMalformedHeader
	}
	for _, part := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return Header{}, ErrMalformedHeader
		}
		switch key {
		case "t":
			h.Timestamp = value
		case "te":
			h.Test = value
		case "li":
			h.Live = value
		}
	}
	if h.Timestamp == "" {
		return Header{}, ErrMalformedHeader
	}
	return h, nil
}

// Signature returns the digest to compare against, preferring live mode.
func (h Header) Signature() string {
	if h.Live != "" {
		return h.Live
	}
	return h.Test
}

func Compute(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest over the raw body and compares it in constant
// time against the header's signature.
func Verify(secret, rawHeader string, body []byte) error {
	h, err := ParseHeader(rawHeader)
	if err != nil {
		return err
	}

	got := h.Signature()
	if got == "" {
		return ErrSignatureMissing
	}

	want := Compute(secret, h.Timestamp, body)
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrMismatch
	}
	return nil
}

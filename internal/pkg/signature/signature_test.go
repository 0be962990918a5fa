//go:build unit

package signature_test

import (
	"fmt"
	"testing"

	"courtbook/internal/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsk_test_secret"

func signedHeader(secret, timestamp string, body []byte, live bool) string {
	sig := signature.Compute(secret, timestamp, body)
	if live {
		return fmt.Sprintf("t=%s,te=,li=%s", timestamp, sig)
	}
	return fmt.Sprintf("t=%s,te=%s,li=", timestamp, sig)
}

func TestParseHeader(t *testing.T) {
	t.Run("full header", func(t *testing.T) {
		h, err := signature.ParseHeader("t=1717300000,te=abc,li=def")
		require.NoError(t, err)
		assert.Equal(t, "1717300000", h.Timestamp)
		assert.Equal(t, "abc", h.Test)
		assert.Equal(t, "def", h.Live)
	})

	t.Run("prefers live signature", func(t *testing.T) {
		h, err := signature.ParseHeader("t=1,te=abc,li=def")
		require.NoError(t, err)
		assert.Equal(t, "def", h.Signature())
	})

	t.Run("falls back to test signature", func(t *testing.T) {
		h, err := signature.ParseHeader("t=1,te=abc,li=")
		require.NoError(t, err)
		assert.Equal(t, "abc", h.Signature())
	})

	for _, raw := range []string{"", "nonsense", "te=abc,li=def"} {
		t.Run("malformed: "+raw, func(t *testing.T) {
			_, err := signature.ParseHeader(raw)
			assert.ErrorIs(t, err, signature.ErrMalformedHeader)
		})
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"data":{"id":"evt_123"}}`)

	t.Run("valid live signature", func(t *testing.T) {
		header := signedHeader(testSecret, "1717300000", body, true)
		assert.NoError(t, signature.Verify(testSecret, header, body))
	})

	t.Run("valid test signature", func(t *testing.T) {
		header := signedHeader(testSecret, "1717300000", body, false)
		assert.NoError(t, signature.Verify(testSecret, header, body))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := signedHeader("other_secret", "1717300000", body, true)
		assert.ErrorIs(t, signature.Verify(testSecret, header, body), signature.ErrMismatch)
	})

	t.Run("tampered body", func(t *testing.T) {
		header := signedHeader(testSecret, "1717300000", body, true)
		err := signature.Verify(testSecret, header, []byte(`{"data":{"id":"evt_999"}}`))
		assert.ErrorIs(t, err, signature.ErrMismatch)
	})

	t.Run("tampered timestamp", func(t *testing.T) {
		sig := signature.Compute(testSecret, "1717300000", body)
		header := fmt.Sprintf("t=9999999999,te=,li=%s", sig)
		assert.ErrorIs(t, signature.Verify(testSecret, header, body), signature.ErrMismatch)
	})

	t.Run("no signature present", func(t *testing.T) {
		err := signature.Verify(testSecret, "t=1717300000,te=,li=", body)
		assert.ErrorIs(t, err, signature.ErrSignatureMissing)
	})
}

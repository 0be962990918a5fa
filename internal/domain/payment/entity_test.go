//go:build unit

package payment_test

import (
	"testing"
	"time"

	"courtbook/internal/domain/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	t.Run("starts pending", func(t *testing.T) {
		p, err := payment.NewPayment(uuid.New(), 5500, "PHP", "ewallet")
		require.NoError(t, err)

		assert.Equal(t, payment.StatusPending, p.Status())
		assert.Equal(t, int64(5500), p.AmountCents())
		assert.Nil(t, p.ExternalID())
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		_, err := payment.NewPayment(uuid.New(), 0, "PHP", "ewallet")
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)

		_, err = payment.NewPayment(uuid.New(), -100, "PHP", "ewallet")
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)
	})
}

func TestPayment_StatusFinality(t *testing.T) {
	newPending := func(t *testing.T) *payment.Payment {
		t.Helper()
		p, err := payment.NewPayment(uuid.New(), 5500, "PHP", "ewallet")
		require.NoError(t, err)
		return p
	}

	t.Run("complete then complete again is a no-op", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Complete())
		require.NoError(t, p.Complete())
		assert.Equal(t, payment.StatusCompleted, p.Status())
	})

	t.Run("completed payment cannot fail", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Complete())
		assert.ErrorIs(t, p.Fail("payment_failed", "declined"), payment.ErrCompletedIsFinal)
		assert.Equal(t, payment.StatusCompleted, p.Status())
	})

	t.Run("failed payment cannot complete", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Fail("payment_failed", "declined"))
		assert.ErrorIs(t, p.Complete(), payment.ErrCompletedIsFinal)
		assert.Equal(t, payment.StatusFailed, p.Status())
	})

	t.Run("fail records the provider descriptor", func(t *testing.T) {
		p := newPending(t)
		require.NoError(t, p.Fail("insufficient_funds", "Not enough balance"))
		code, message := p.Metadata().LastFailure()
		assert.Equal(t, "insufficient_funds", code)
		assert.Equal(t, "Not enough balance", message)
	})
}

func TestMetadata_ProcessedEvents(t *testing.T) {
	t.Run("ledger grows and deduplicates", func(t *testing.T) {
		m := payment.NewMetadata()
		assert.False(t, m.HasProcessed("evt_1"))

		m.MarkProcessed("evt_1")
		m.MarkProcessed("evt_2")
		m.MarkProcessed("evt_1")

		assert.Equal(t, []string{"evt_1", "evt_2"}, m.ProcessedEvents())
		assert.True(t, m.HasProcessed("evt_1"))
	})

	t.Run("survives the jsonb round trip shape", func(t *testing.T) {
		// Decoded jsonb arrives as []any, not []string.
		m := payment.Metadata{"processed_events": []any{"evt_1", "evt_2"}}
		assert.True(t, m.HasProcessed("evt_2"))

		m.MarkProcessed("evt_3")
		assert.Equal(t, []string{"evt_1", "evt_2", "evt_3"}, m.ProcessedEvents())
	})
}

func TestMetadata_ProcessingLock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("acquire and release", func(t *testing.T) {
		m := payment.NewMetadata()
		assert.False(t, m.LockIsFresh(now, 5*time.Minute))

		m.AcquireLock(now)
		locked, startedAt := m.Processing()
		assert.True(t, locked)
		assert.Equal(t, now, startedAt)
		assert.True(t, m.LockIsFresh(now.Add(time.Minute), 5*time.Minute))

		m.ReleaseLock()
		assert.False(t, m.LockIsFresh(now, 5*time.Minute))
	})

	t.Run("stale lock may be taken over", func(t *testing.T) {
		m := payment.NewMetadata()
		m.AcquireLock(now)
		assert.False(t, m.LockIsFresh(now.Add(5*time.Minute), 5*time.Minute))
	})

	t.Run("unparseable start time counts as stale", func(t *testing.T) {
		m := payment.Metadata{"processing": true, "processing_started_at": "garbage"}
		assert.False(t, m.LockIsFresh(now, 5*time.Minute))
	})
}

//go:build unit

package queue_test

import (
	"testing"
	"time"

	"courtbook/internal/domain/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cooldown = 5 * time.Minute

var joinTime = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

func TestParticipant_LeaveAndRejoin(t *testing.T) {
	t.Run("leave stamps left_at and deactivates", func(t *testing.T) {
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		leftAt := joinTime.Add(30 * time.Minute)

		require.NoError(t, p.Leave(leftAt))
		assert.False(t, p.IsActive())
		require.NotNil(t, p.LeftAt())
		assert.Equal(t, leftAt, *p.LeftAt())
	})

	t.Run("leaving twice is rejected", func(t *testing.T) {
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		require.NoError(t, p.Leave(joinTime.Add(time.Minute)))
		assert.ErrorIs(t, p.Leave(joinTime.Add(2*time.Minute)), queue.ErrAlreadyLeft)
	})

	t.Run("rejoin resets the row in place", func(t *testing.T) {
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		id := p.ID()
		require.NoError(t, p.Leave(joinTime.Add(time.Minute)))

		rejoinAt := joinTime.Add(10 * time.Minute)
		p.Rejoin(rejoinAt)

		assert.Equal(t, id, p.ID())
		assert.True(t, p.IsActive())
		assert.Nil(t, p.LeftAt())
		assert.Equal(t, rejoinAt, p.JoinedAt())
	})
}

func TestParticipant_CheckRejoin(t *testing.T) {
	leftParticipant := func(t *testing.T, leftAt time.Time) *queue.Participant {
		t.Helper()
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		require.NoError(t, p.Leave(leftAt))
		return p
	}
	leftAt := joinTime.Add(30 * time.Minute)

	t.Run("active participant cannot rejoin", func(t *testing.T) {
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		assert.ErrorIs(t, p.CheckRejoin(joinTime.Add(time.Minute), cooldown), queue.ErrAlreadyJoined)
	})

	t.Run("rejoin inside the cooldown is rejected", func(t *testing.T) {
		p := leftParticipant(t, leftAt)
		err := p.CheckRejoin(leftAt.Add(4*time.Minute), cooldown)
		assert.ErrorIs(t, err, queue.ErrCooldownActive)
	})

	t.Run("rejoin exactly at the boundary is allowed", func(t *testing.T) {
		p := leftParticipant(t, leftAt)
		assert.NoError(t, p.CheckRejoin(leftAt.Add(cooldown), cooldown))
	})

	t.Run("rejoin after the cooldown is allowed", func(t *testing.T) {
		p := leftParticipant(t, leftAt)
		assert.NoError(t, p.CheckRejoin(leftAt.Add(cooldown+time.Second), cooldown))
	})
}

func TestParticipant_UnpaidBalanceGuard(t *testing.T) {
	t.Run("owing participant cannot leave voluntarily", func(t *testing.T) {
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		p.RecordGame(true, 500)

		assert.ErrorIs(t, p.Leave(joinTime.Add(time.Hour)), queue.ErrUnpaidBalance)
		assert.True(t, p.IsActive())
	})

	t.Run("settled participant may leave", func(t *testing.T) {
		p := queue.ReconstructParticipant(
			uuid.New(), uuid.New(), uuid.New(), queue.ParticipantWaiting,
			3, 1, 1500, queue.PaymentPaid, joinTime, nil,
		)
		assert.NoError(t, p.Leave(joinTime.Add(time.Hour)))
	})

	t.Run("force removal overrides the guard and keeps the debt", func(t *testing.T) {
		p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)
		p.RecordGame(false, 500)

		require.NoError(t, p.ForceRemove(joinTime.Add(time.Hour)))
		assert.False(t, p.IsActive())
		assert.Equal(t, int64(500), p.AmountOwedCents())
	})
}

func TestParticipant_RecordGame(t *testing.T) {
	p := queue.NewParticipant(uuid.New(), uuid.New(), joinTime)

	p.RecordGame(true, 500)
	p.RecordGame(false, 500)

	assert.Equal(t, 2, p.GamesPlayed())
	assert.Equal(t, 1, p.GamesWon())
	assert.Equal(t, int64(1000), p.AmountOwedCents())
	assert.Equal(t, queue.PaymentUnpaid, p.PaymentState())
}

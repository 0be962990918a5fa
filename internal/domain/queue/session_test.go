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

func newSession(t *testing.T, requiresApproval bool) *queue.Session {
	t.Helper()
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	s, err := queue.NewSession(
		uuid.New(), uuid.New(), uuid.New(), start, start.Add(3*time.Hour),
		queue.ModeCasual, "doubles", 8, 5000, queue.VisibilityPublic, requiresApproval,
	)
	require.NoError(t, err)
	return s
}

func TestNewSession(t *testing.T) {
	t.Run("opens immediately without approval gate", func(t *testing.T) {
		s := newSession(t, false)
		assert.Equal(t, queue.SessionOpen, s.Status())
		assert.Equal(t, queue.ApprovalApproved, s.Approval())
		assert.Equal(t, 3, s.DurationHours())
	})

	t.Run("approval-gated court parks the session", func(t *testing.T) {
		s := newSession(t, true)
		assert.Equal(t, queue.SessionPendingApproval, s.Status())
		assert.Equal(t, queue.ApprovalPending, s.Approval())
	})

	t.Run("validation failures", func(t *testing.T) {
		start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
		_, err := queue.NewSession(uuid.New(), uuid.New(), uuid.New(), start, start.Add(time.Hour),
			queue.Mode("ranked"), "doubles", 8, 0, queue.VisibilityPublic, false)
		assert.ErrorIs(t, err, queue.ErrInvalidMode)

		_, err = queue.NewSession(uuid.New(), uuid.New(), uuid.New(), start, start.Add(time.Hour),
			queue.ModeCasual, "doubles", 0, 0, queue.VisibilityPublic, false)
		assert.ErrorIs(t, err, queue.ErrInvalidMaxPlayers)
	})
}

func TestSession_ApproveReject(t *testing.T) {
	t.Run("approve opens a pending session", func(t *testing.T) {
		s := newSession(t, true)
		require.NoError(t, s.Approve())
		assert.Equal(t, queue.SessionOpen, s.Status())
		assert.Equal(t, queue.ApprovalApproved, s.Approval())
	})

	t.Run("reject cancels a pending session", func(t *testing.T) {
		s := newSession(t, true)
		require.NoError(t, s.Reject())
		assert.Equal(t, queue.SessionCancelled, s.Status())
		assert.Equal(t, queue.ApprovalRejected, s.Approval())
	})

	t.Run("approve on an open session fails", func(t *testing.T) {
		s := newSession(t, false)
		assert.ErrorIs(t, s.Approve(), queue.ErrInvalidTransition)
	})
}

func TestSession_CheckJoinable(t *testing.T) {
	testCases := []struct {
		name    string
		status  queue.SessionStatus
		current int
		errIs   error
	}{
		{"open with room", queue.SessionOpen, 3, nil},
		{"active with room", queue.SessionActive, 3, nil},
		{"full", queue.SessionOpen, 8, queue.ErrSessionFull},
		{"pending approval", queue.SessionPendingApproval, 0, queue.ErrSessionNotJoinable},
		{"paused", queue.SessionPaused, 0, queue.ErrSessionNotJoinable},
		{"closed", queue.SessionClosed, 0, queue.ErrSessionNotJoinable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := queue.ReconstructSession(
				uuid.New(), uuid.New(), uuid.New(), uuid.New(),
				time.Now(), time.Now().Add(time.Hour),
				queue.ModeCasual, "doubles", 8, tc.current, 5000,
				queue.VisibilityPublic, tc.status, queue.ApprovalApproved, nil,
				time.Now(), time.Now(),
			)
			err := s.CheckJoinable()
			if tc.errIs == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.errIs)
			}
		})
	}
}

func TestSession_Close(t *testing.T) {
	summary := queue.Summary{TotalGames: 12, TotalRevenue: 60000, ParticipantCount: 6, UnpaidBalances: 1}

	t.Run("close stores the summary", func(t *testing.T) {
		s := newSession(t, false)
		require.NoError(t, s.Close(summary))
		assert.Equal(t, queue.SessionClosed, s.Status())
		require.NotNil(t, s.Summary())
		assert.Equal(t, summary, *s.Summary())
	})

	t.Run("closing twice is flagged, not recomputed", func(t *testing.T) {
		s := newSession(t, false)
		require.NoError(t, s.Close(summary))
		err := s.Close(queue.Summary{TotalGames: 99})
		assert.ErrorIs(t, err, queue.ErrSessionAlreadyClosed)
		assert.Equal(t, 12, s.Summary().TotalGames)
	})
}

func TestBuildSummary(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	sessionID := uuid.New()

	participant := func(games int, owed int64, state queue.PaymentState) *queue.Participant {
		p := queue.NewParticipant(sessionID, uuid.New(), now)
		for i := 0; i < games; i++ {
			p.RecordGame(i%2 == 0, owed/int64(games))
		}
		return queue.ReconstructParticipant(
			p.ID(), sessionID, p.UserID(), p.Status(),
			p.GamesPlayed(), p.GamesWon(), owed, state, now, nil,
		)
	}

	participants := []*queue.Participant{
		participant(4, 2000, queue.PaymentPaid),
		participant(4, 2000, queue.PaymentUnpaid),
		participant(2, 1000, queue.PaymentPartial),
	}

	sum := queue.BuildSummary(participants)
	assert.Equal(t, 10, sum.TotalGames)
	assert.Equal(t, int64(5000), sum.TotalRevenue)
	assert.Equal(t, 3, sum.ParticipantCount)
	assert.Equal(t, 2, sum.UnpaidBalances)
}

//go:build e2e

package queue_test

import (
	"net/http"
	nethttptest "net/http/httptest"
	"testing"
	"time"

	"courtbook/internal/handler/dto/response"
	"courtbook/tests/common/authtest"
	"courtbook/tests/common/dbtest"
	"courtbook/tests/common/httptest"
	"courtbook/tests/e2e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const sessionsURL = "/api/queue-sessions"

type queueSuite struct {
	e2e.SharedSuite

	organizerToken string
	adminToken     string
	playerTokens   []string
	courtID        uuid.UUID
}

func TestQueueSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(queueSuite))
}

func (s *queueSuite) SetupSubTest() {
	s.SharedSuite.SetupSubTest()

	t := s.T()
	organizerID := dbtest.CreateTestUser(t, s.DB, "organizer@example.com", "user")
	adminID := dbtest.CreateTestUser(t, s.DB, "admin@example.com", "admin")
	s.organizerToken = authtest.IssueToken(t, s.Config, organizerID, "user")
	s.adminToken = authtest.IssueToken(t, s.Config, adminID, "admin")

	s.playerTokens = s.playerTokens[:0]
	for _, email := range []string{"p1@example.com", "p2@example.com", "p3@example.com"} {
		id := dbtest.CreateTestUser(t, s.DB, email, "user")
		s.playerTokens = append(s.playerTokens, authtest.IssueToken(t, s.Config, id, "user"))
	}

	s.courtID = dbtest.CreateTestCourt(t, s.DB, 10000, false)
}

func (s *queueSuite) sessionPayload(maxPlayers int) map[string]any {
	day := time.Now().UTC().AddDate(0, 0, 7)
	start := time.Date(day.Year(), day.Month(), day.Day(), 18, 0, 0, 0, time.UTC)
	return map[string]any{
		"court_id":            s.courtID,
		"start_time":          start,
		"end_time":            start.Add(3 * time.Hour),
		"mode":                "casual",
		"game_format":         "doubles",
		"max_players":         maxPlayers,
		"cost_per_game_cents": 500,
	}
}

func (s *queueSuite) createSession(courtID uuid.UUID, maxPlayers int) response.QueueSessionResponse {
	payload := s.sessionPayload(maxPlayers)
	payload["court_id"] = courtID

	w := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, sessionsURL, payload, s.organizerToken)
	require.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())

	var resp response.QueueSessionResponse
	httptest.DecodeJSON(s.T(), w, &resp)
	return resp
}

func (s *queueSuite) getSession(id uuid.UUID) response.QueueSessionResponse {
	w := httptest.PerformRequest(s.T(), s.Router, http.MethodGet,
		sessionsURL+"/"+id.String(), nil, s.organizerToken)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var resp response.QueueSessionResponse
	httptest.DecodeJSON(s.T(), w, &resp)
	return resp
}

func (s *queueSuite) post(path, token string) *nethttptest.ResponseRecorder {
	return httptest.PerformRequest(s.T(), s.Router, http.MethodPost, path, nil, token)
}

func (s *queueSuite) TestSessionLifecycle() {
	s.Run("join, leave, cooldown, close", func() {
		session := s.createSession(s.courtID, 8)
		require.Equal(s.T(), "open", session.Status)
		require.Equal(s.T(), "approved", session.ApprovalStatus)
		basePlayers := session.CurrentPlayers

		base := sessionsURL + "/" + session.ID.String()

		w := s.post(base+"/join", s.playerTokens[0])
		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
		require.Equal(s.T(), basePlayers+1, s.getSession(session.ID).CurrentPlayers)

		w = s.post(base+"/join", s.playerTokens[0])
		require.Equal(s.T(), http.StatusConflict, w.Code)

		w = s.post(base+"/join", s.playerTokens[1])
		require.Equal(s.T(), http.StatusOK, w.Code)

		w = s.post(base+"/leave", s.playerTokens[0])
		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
		require.Equal(s.T(), basePlayers+1, s.getSession(session.ID).CurrentPlayers)

		// Cooldown: an immediate rejoin after leaving is rejected.
		w = s.post(base+"/join", s.playerTokens[0])
		require.Equal(s.T(), http.StatusConflict, w.Code)

		w = s.post(base+"/close", s.playerTokens[1])
		require.Equal(s.T(), http.StatusForbidden, w.Code)

		w = s.post(base+"/close", s.organizerToken)
		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

		var summary response.SessionSummary
		httptest.DecodeJSON(s.T(), w, &summary)
		require.Zero(s.T(), summary.TotalGames)
		require.Zero(s.T(), summary.TotalRevenue)
		require.Zero(s.T(), summary.UnpaidBalances)
		require.Equal(s.T(), 1, dbtest.CountNotifications(s.T(), s.DB, "session_closed"))

		// Closing again hands back the stored summary without re-notifying.
		w = s.post(base+"/close", s.organizerToken)
		require.Equal(s.T(), http.StatusOK, w.Code)
		require.Equal(s.T(), 1, dbtest.CountNotifications(s.T(), s.DB, "session_closed"))

		w = s.post(base+"/join", s.playerTokens[2])
		require.Equal(s.T(), http.StatusConflict, w.Code)
	})

	s.Run("session fills up", func() {
		session := s.createSession(s.courtID, 2)
		base := sessionsURL + "/" + session.ID.String()

		require.Equal(s.T(), http.StatusOK, s.post(base+"/join", s.playerTokens[0]).Code)
		require.Equal(s.T(), http.StatusOK, s.post(base+"/join", s.playerTokens[1]).Code)
		require.Equal(s.T(), http.StatusConflict, s.post(base+"/join", s.playerTokens[2]).Code)
	})
}

func (s *queueSuite) TestApprovalFlow() {
	s.Run("approval-gated court holds the session and reservation", func() {
		gatedCourt := dbtest.CreateTestCourt(s.T(), s.DB, 10000, true)
		session := s.createSession(gatedCourt, 8)
		require.Equal(s.T(), "pending_approval", session.Status)
		require.Equal(s.T(), "pending", session.ApprovalStatus)

		var resStatus string
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT status FROM reservations WHERE id = $1", session.ReservationID).Scan(&resStatus)
		require.NoError(s.T(), err)
		require.Equal(s.T(), "pending", resStatus)

		base := sessionsURL + "/" + session.ID.String()

		// Nobody can join before approval.
		require.Equal(s.T(), http.StatusConflict, s.post(base+"/join", s.playerTokens[0]).Code)

		require.Equal(s.T(), http.StatusForbidden, s.post(base+"/approve", s.organizerToken).Code)

		w := s.post(base+"/approve", s.adminToken)
		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

		var approved response.QueueSessionResponse
		httptest.DecodeJSON(s.T(), w, &approved)
		require.Equal(s.T(), "open", approved.Status)
		require.Equal(s.T(), "approved", approved.ApprovalStatus)
		require.Equal(s.T(), 1, dbtest.CountNotifications(s.T(), s.DB, "session_approved"))

		err = s.DB.QueryRow(s.T().Context(),
			"SELECT status FROM reservations WHERE id = $1", session.ReservationID).Scan(&resStatus)
		require.NoError(s.T(), err)
		require.Equal(s.T(), "pending_payment", resStatus)

		require.Equal(s.T(), http.StatusConflict, s.post(base+"/approve", s.adminToken).Code)
		require.Equal(s.T(), http.StatusOK, s.post(base+"/join", s.playerTokens[0]).Code)
	})

	s.Run("admin rejection releases the held reservation", func() {
		gatedCourt := dbtest.CreateTestCourt(s.T(), s.DB, 10000, true)
		session := s.createSession(gatedCourt, 8)
		base := sessionsURL + "/" + session.ID.String()

		w := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, base+"/reject",
			map[string]any{"reason": "Court maintenance"}, s.organizerToken)
		require.Equal(s.T(), http.StatusForbidden, w.Code)

		w = httptest.PerformRequest(s.T(), s.Router, http.MethodPost, base+"/reject",
			map[string]any{}, s.adminToken)
		require.Equal(s.T(), http.StatusBadRequest, w.Code)

		w = httptest.PerformRequest(s.T(), s.Router, http.MethodPost, base+"/reject",
			map[string]any{"reason": "Court maintenance"}, s.adminToken)
		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

		var rejected response.QueueSessionResponse
		httptest.DecodeJSON(s.T(), w, &rejected)
		require.Equal(s.T(), "cancelled", rejected.Status)
		require.Equal(s.T(), "rejected", rejected.ApprovalStatus)
		require.Equal(s.T(), 1, dbtest.CountNotifications(s.T(), s.DB, "session_rejected"))

		var resStatus string
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT status FROM reservations WHERE id = $1", session.ReservationID).Scan(&resStatus)
		require.NoError(s.T(), err)
		require.Equal(s.T(), "cancelled", resStatus)

		// Rejecting again is a conflict; the interval is free for a new
		// session.
		w = httptest.PerformRequest(s.T(), s.Router, http.MethodPost, base+"/reject",
			map[string]any{"reason": "again"}, s.adminToken)
		require.Equal(s.T(), http.StatusConflict, w.Code)

		fresh := s.createSession(gatedCourt, 8)
		require.Equal(s.T(), "pending_approval", fresh.Status)
	})

	s.Run("organizer cancels an empty session and frees the slot", func() {
		session := s.createSession(s.courtID, 8)
		base := sessionsURL + "/" + session.ID.String()

		require.Equal(s.T(), http.StatusForbidden, s.post(base+"/cancel", s.playerTokens[0]).Code)

		w := s.post(base+"/cancel", s.organizerToken)
		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
		require.Equal(s.T(), "cancelled", s.getSession(session.ID).Status)

		var resStatus string
		err := s.DB.QueryRow(s.T().Context(),
			"SELECT status FROM reservations WHERE id = $1", session.ReservationID).Scan(&resStatus)
		require.NoError(s.T(), err)
		require.Equal(s.T(), "cancelled", resStatus)

		replacement := s.createSession(s.courtID, 8)
		require.Equal(s.T(), "open", replacement.Status)
	})

	s.Run("participants block organizer cancellation", func() {
		session := s.createSession(s.courtID, 8)
		base := sessionsURL + "/" + session.ID.String()

		require.Equal(s.T(), http.StatusOK, s.post(base+"/join", s.playerTokens[0]).Code)
		require.Equal(s.T(), http.StatusConflict, s.post(base+"/cancel", s.organizerToken).Code)
		require.Equal(s.T(), "open", s.getSession(session.ID).Status)
	})

	s.Run("session creation blocks the court interval", func() {
		session := s.createSession(s.courtID, 8)
		require.Equal(s.T(), "open", session.Status)

		w := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, sessionsURL,
			s.sessionPayload(8), s.organizerToken)
		require.Equal(s.T(), http.StatusConflict, w.Code, w.Body.String())
	})
}

package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition    = errors.New("invalid session status transition")
	ErrSessionNotJoinable   = errors.New("session is not accepting participants")
	ErrSessionFull          = errors.New("session is full")
	ErrCancelWithPlayers    = errors.New("session with participants cannot be cancelled")
	ErrInvalidMaxPlayers    = errors.New("max players must be positive")
	ErrInvalidMode          = errors.New("invalid session mode")
	ErrNotOrganizer         = errors.New("only the organizer may perform this action")
	ErrSessionAlreadyClosed = errors.New("session is already closed")
)

// Session is a walk-in pay-per-game event scoped to exactly one blocking
// reservation on the court. current_players is authoritative in storage and
// only moved through atomic counter updates; the copy here is a snapshot.
type Session struct {
	id             uuid.UUID
	courtID        uuid.UUID
	organizerID    uuid.UUID
	reservationID  uuid.UUID
	start          time.Time
	end            time.Time
	mode           Mode
	gameFormat     string
	maxPlayers     int
	currentPlayers int
	costPerGame    int64
	visibility     Visibility
	status         SessionStatus
	approval       ApprovalStatus
	summary        *Summary
	createdAt      time.Time
	updatedAt      time.Time
}

// Summary is computed once when the session closes.
type Summary struct {
	TotalGames       int   `json:"total_games"`
	TotalRevenue     int64 `json:"total_revenue"`
	ParticipantCount int   `json:"participant_count"`
	UnpaidBalances   int   `json:"unpaid_balances"`
}

func NewSession(
	courtID, organizerID, reservationID uuid.UUID,
	start, end time.Time,
	mode Mode,
	gameFormat string,
	maxPlayers int,
	costPerGame int64,
	visibility Visibility,
	requiresApproval bool,
) (*Session, error) {
	if !mode.IsValid() {
		return nil, ErrInvalidMode
	}
	if maxPlayers <= 0 {
		return nil, ErrInvalidMaxPlayers
	}

	status := SessionOpen
	approval := ApprovalApproved
	if requiresApproval {
		status = SessionPendingApproval
		approval = ApprovalPending
	}

	return &Session{
		id:            uuid.New(),
		courtID:       courtID,
		organizerID:   organizerID,
		reservationID: reservationID,
		start:         start.UTC(),
		end:           end.UTC(),
		mode:          mode,
		gameFormat:    gameFormat,
		maxPlayers:    maxPlayers,
		costPerGame:   costPerGame,
		visibility:    visibility,
		status:        status,
		approval:      approval,
	}, nil
}

func ReconstructSession(
	id, courtID, organizerID, reservationID uuid.UUID,
	start, end time.Time,
	mode Mode,
	gameFormat string,
	maxPlayers, currentPlayers int,
	costPerGame int64,
	visibility Visibility,
	status SessionStatus,
	approval ApprovalStatus,
	summary *Summary,
	createdAt, updatedAt time.Time,
) *Session {
	return &Session{
		id:             id,
		courtID:        courtID,
		organizerID:    organizerID,
		reservationID:  reservationID,
		start:          start,
		end:            end,
		mode:           mode,
		gameFormat:     gameFormat,
		maxPlayers:     maxPlayers,
		currentPlayers: currentPlayers,
		costPerGame:    costPerGame,
		visibility:     visibility,
		status:         status,
		approval:       approval,
		summary:        summary,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (s *Session) ID() uuid.UUID            { return s.id }
func (s *Session) CourtID() uuid.UUID       { return s.courtID }
func (s *Session) OrganizerID() uuid.UUID   { return s.organizerID }
func (s *Session) ReservationID() uuid.UUID { return s.reservationID }
func (s *Session) Start() time.Time         { return s.start }
func (s *Session) End() time.Time           { return s.end }
func (s *Session) Mode() Mode               { return s.mode }
func (s *Session) GameFormat() string       { return s.gameFormat }
func (s *Session) MaxPlayers() int          { return s.maxPlayers }
func (s *Session) CurrentPlayers() int      { return s.currentPlayers }
func (s *Session) CostPerGame() int64       { return s.costPerGame }
func (s *Session) Visibility() Visibility   { return s.visibility }
func (s *Session) Status() SessionStatus    { return s.status }
func (s *Session) Approval() ApprovalStatus { return s.approval }
func (s *Session) Summary() *Summary        { return s.summary }
func (s *Session) CreatedAt() time.Time     { return s.createdAt }
func (s *Session) UpdatedAt() time.Time     { return s.updatedAt }

func (s *Session) IsOrganizer(userID uuid.UUID) bool {
	return s.organizerID == userID
}

// DurationHours is the whole-hour length of the session interval.
func (s *Session) DurationHours() int {
	return int(s.end.Sub(s.start).Hours())
}

func (s *Session) Transition(next SessionStatus) error {
	if !s.status.CanTransition(next) {
		return ErrInvalidTransition
	}
	s.status = next
	return nil
}

// Approve records venue-admin approval and opens the session to joins.
func (s *Session) Approve() error {
	if err := s.Transition(SessionOpen); err != nil {
		return err
	}
	s.approval = ApprovalApproved
	return nil
}

func (s *Session) Reject() error {
	if err := s.Transition(SessionCancelled); err != nil {
		return err
	}
	s.approval = ApprovalRejected
	return nil
}

// CheckJoinable validates a join attempt against status and capacity.
// Capacity enforcement at write time is the storage layer's atomic counter;
// this is the advisory pre-check.
func (s *Session) CheckJoinable() error {
	if !s.status.AcceptsJoins() {
		return ErrSessionNotJoinable
	}
	if s.currentPlayers >= s.maxPlayers {
		return ErrSessionFull
	}
	return nil
}

// CheckCancellable enforces that only empty draft/open sessions cancel.
func (s *Session) CheckCancellable() error {
	if s.status != SessionDraft && s.status != SessionOpen {
		return ErrInvalidTransition
	}
	if s.currentPlayers > 0 {
		return ErrCancelWithPlayers
	}
	return nil
}

// Close is terminal and idempotent at the call level: closing a closed
// session returns ErrSessionAlreadyClosed so callers can skip re-notifying
// without treating it as failure.
func (s *Session) Close(summary Summary) error {
	if s.status == SessionClosed {
		return ErrSessionAlreadyClosed
	}
	if err := s.Transition(SessionClosed); err != nil {
		return err
	}
	s.summary = &summary
	return nil
}

// BuildSummary aggregates participant accounting for the close payload.
// Total revenue is the sum of amounts owed.
func BuildSummary(participants []*Participant) Summary {
	var sum Summary
	for _, p := range participants {
		sum.TotalGames += p.GamesPlayed()
		sum.TotalRevenue += p.AmountOwedCents()
		sum.ParticipantCount++
		if p.AmountOwedCents() > 0 && p.PaymentState() != PaymentPaid {
			sum.UnpaidBalances++
		}
	}
	return sum
}

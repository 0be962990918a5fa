package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyJoined     = errors.New("user is already in this session")
	ErrUnpaidBalance     = errors.New("participant has an unpaid balance")
	ErrAlreadyLeft       = errors.New("participant has already left")
	ErrCooldownActive    = errors.New("rejoin cooldown is active")
	ErrParticipantAbsent = errors.New("participant not found in session")
)

// Participant is one user's membership in a queue session. At most one row
// exists per (session, user); leaving and rejoining reuses the row.
type Participant struct {
	id              uuid.UUID
	sessionID       uuid.UUID
	userID          uuid.UUID
	status          ParticipantStatus
	gamesPlayed     int
	gamesWon        int
	amountOwedCents int64
	paymentState    PaymentState
	joinedAt        time.Time
	leftAt          *time.Time
}

func NewParticipant(sessionID, userID uuid.UUID, now time.Time) *Participant {
	return &Participant{
		id:           uuid.New(),
		sessionID:    sessionID,
		userID:       userID,
		status:       ParticipantWaiting,
		paymentState: PaymentUnpaid,
		joinedAt:     now.UTC(),
	}
}

func ReconstructParticipant(
	id, sessionID, userID uuid.UUID,
	status ParticipantStatus,
	gamesPlayed, gamesWon int,
	amountOwedCents int64,
	paymentState PaymentState,
	joinedAt time.Time,
	leftAt *time.Time,
) *Participant {
	return &Participant{
		id:              id,
		sessionID:       sessionID,
		userID:          userID,
		status:          status,
		gamesPlayed:     gamesPlayed,
		gamesWon:        gamesWon,
		amountOwedCents: amountOwedCents,
		paymentState:    paymentState,
		joinedAt:        joinedAt,
		leftAt:          leftAt,
	}
}

func (p *Participant) ID() uuid.UUID             { return p.id }
func (p *Participant) SessionID() uuid.UUID      { return p.sessionID }
func (p *Participant) UserID() uuid.UUID         { return p.userID }
func (p *Participant) Status() ParticipantStatus { return p.status }
func (p *Participant) GamesPlayed() int          { return p.gamesPlayed }
func (p *Participant) GamesWon() int             { return p.gamesWon }
func (p *Participant) AmountOwedCents() int64    { return p.amountOwedCents }
func (p *Participant) PaymentState() PaymentState { return p.paymentState }
func (p *Participant) JoinedAt() time.Time       { return p.joinedAt }
func (p *Participant) LeftAt() *time.Time        { return p.leftAt }

func (p *Participant) IsActive() bool {
	return p.status != ParticipantLeft
}

// CooldownRemaining returns how long until the user may rejoin, measured
// from left_at. Zero means no cooldown applies.
func (p *Participant) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if p.leftAt == nil {
		return 0
	}
	remaining := cooldown - now.Sub(*p.leftAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckRejoin validates a rejoin attempt against the cooldown window.
func (p *Participant) CheckRejoin(now time.Time, cooldown time.Duration) error {
	if p.IsActive() {
		return ErrAlreadyJoined
	}
	if remaining := p.CooldownRemaining(now, cooldown); remaining > 0 {
		return fmt.Errorf("%w: wait %s before rejoining", ErrCooldownActive, remaining.Round(time.Second))
	}
	return nil
}

// Rejoin reuses the existing row: left_at resets to null with a fresh
// joined_at, respecting the (session, user) uniqueness constraint.
func (p *Participant) Rejoin(now time.Time) {
	p.status = ParticipantWaiting
	p.leftAt = nil
	p.joinedAt = now.UTC()
}

// CheckLeavable: an owing, unpaid participant cannot leave
// voluntarily.
func (p *Participant) CheckLeavable() error {
	if !p.IsActive() {
		return ErrAlreadyLeft
	}
	if p.amountOwedCents > 0 && p.paymentState != PaymentPaid {
		return ErrUnpaidBalance
	}
	return nil
}

func (p *Participant) Leave(now time.Time) error {
	if err := p.CheckLeavable(); err != nil {
		return err
	}
	p.markLeft(now)
	return nil
}

// ForceRemove is the organizer override of the unpaid-balance guard: the participant leaves with
// the owed amount recorded as-is at removal time.
func (p *Participant) ForceRemove(now time.Time) error {
	if !p.IsActive() {
		return ErrAlreadyLeft
	}
	p.markLeft(now)
	return nil
}

func (p *Participant) markLeft(now time.Time) {
	p.status = ParticipantLeft
	at := now.UTC()
	p.leftAt = &at
}

// RecordGame accrues one game and its fee against the participant.
func (p *Participant) RecordGame(won bool, costPerGameCents int64) {
	p.gamesPlayed++
	if won {
		p.gamesWon++
	}
	p.amountOwedCents += costPerGameCents
	if p.paymentState == PaymentPaid && p.amountOwedCents > 0 {
		p.paymentState = PaymentPartial
	}
}

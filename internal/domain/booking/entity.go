package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidStatus       = errors.New("invalid reservation status")
	ErrInvalidTransition   = errors.New("invalid reservation status transition")
	ErrAlreadyCancelled    = errors.New("reservation is already cancelled")
	ErrOverpayment         = errors.New("amount paid cannot exceed total amount")
	ErrInvalidPlayerCount  = errors.New("player count must be positive")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrCancelReasonMissing = errors.New("cancellation reason is required")
)

// Reservation is the authoritative record of a booked interval on a court.
// It is never physically deleted; cancellation is a status + reason write.
type Reservation struct {
	id           uuid.UUID
	courtID      uuid.UUID
	userID       uuid.UUID
	slot         TimeSlot
	status       Status
	totalCents   int64
	paidCents    int64
	playerCount  int
	metadata     Metadata
	cancelReason *string
	createdAt    time.Time
	updatedAt    time.Time
	cancelledAt  *time.Time
}

func NewReservation(
	courtID, userID uuid.UUID,
	slot TimeSlot,
	status Status,
	totalCents int64,
	playerCount int,
	metadata Metadata,
) (*Reservation, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if playerCount <= 0 {
		return nil, ErrInvalidPlayerCount
	}
	if totalCents < 0 {
		return nil, errors.New("total amount cannot be negative")
	}
	if metadata == nil {
		metadata = NewMetadata()
	}
	paid := int64(0)
	if status == StatusConfirmed {
		// Cash bookings are settled at the venue on creation.
		paid = totalCents
	}
	return &Reservation{
		id:          uuid.New(),
		courtID:     courtID,
		userID:      userID,
		slot:        slot,
		status:      status,
		totalCents:  totalCents,
		paidCents:   paid,
		playerCount: playerCount,
		metadata:    metadata,
	}, nil
}

func ReconstructReservation(
	id, courtID, userID uuid.UUID,
	slot TimeSlot,
	status Status,
	totalCents, paidCents int64,
	playerCount int,
	metadata Metadata,
	cancelReason *string,
	createdAt, updatedAt time.Time,
	cancelledAt *time.Time,
) *Reservation {
	if metadata == nil {
		metadata = NewMetadata()
	}
	return &Reservation{
		id:           id,
		courtID:      courtID,
		userID:       userID,
		slot:         slot,
		status:       status,
		totalCents:   totalCents,
		paidCents:    paidCents,
		playerCount:  playerCount,
		metadata:     metadata,
		cancelReason: cancelReason,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		cancelledAt:  cancelledAt,
	}
}

func (r *Reservation) ID() uuid.UUID         { return r.id }
func (r *Reservation) CourtID() uuid.UUID    { return r.courtID }
func (r *Reservation) UserID() uuid.UUID     { return r.userID }
func (r *Reservation) Slot() TimeSlot        { return r.slot }
func (r *Reservation) Status() Status        { return r.status }
func (r *Reservation) TotalCents() int64     { return r.totalCents }
func (r *Reservation) PaidCents() int64      { return r.paidCents }
func (r *Reservation) PlayerCount() int      { return r.playerCount }
func (r *Reservation) Metadata() Metadata    { return r.metadata }
func (r *Reservation) CancelReason() *string { return r.cancelReason }
func (r *Reservation) CreatedAt() time.Time  { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time  { return r.updatedAt }
func (r *Reservation) CancelledAt() *time.Time {
	return r.cancelledAt
}

func (r *Reservation) IsBlocking() bool {
	return r.status.IsBlocking()
}

// Transition applies a status change, enforcing the state machine.
func (r *Reservation) Transition(next Status) error {
	if !next.IsValid() {
		return ErrInvalidStatus
	}
	if !r.status.CanTransition(next) {
		return ErrInvalidTransition
	}
	r.status = next
	return nil
}

// RecordPayment sets the paid amount, enforcing paid <= total.
func (r *Reservation) RecordPayment(amountCents int64) error {
	if amountCents > r.totalCents {
		return ErrOverpayment
	}
	r.paidCents = amountCents
	return nil
}

// Cancel moves the reservation to cancelled with a human-readable reason
// and a machine-readable cause. Cancelling a cancelled reservation errs so
// callers do not double-write causes.
func (r *Reservation) Cancel(reason, cause string, now time.Time) error {
	if r.status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if reason == "" {
		return ErrCancelReasonMissing
	}
	r.status = StatusCancelled
	r.cancelReason = &reason
	r.metadata.SetCancellationCause(cause)
	at := now.UTC()
	r.cancelledAt = &at
	return nil
}

// FullyPaid reports whether the confirmed-state equality requirement of I2
// holds.
func (r *Reservation) FullyPaid() bool {
	return r.paidCents == r.totalCents
}

package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrCompletedIsFinal = errors.New("completed payment cannot be regressed")
	ErrInvalidAmount    = errors.New("payment amount must be positive")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Payment is one row per payment attempt, correlated to a reservation and
// mutated exclusively by the webhook reconciler after creation. Never
// deleted.
type Payment struct {
	id            uuid.UUID
	reservationID uuid.UUID
	amountCents   int64
	currency      string
	method        string
	status        Status
	externalID    *string
	metadata      Metadata
	createdAt     time.Time
	updatedAt     time.Time
}

func NewPayment(reservationID uuid.UUID, amountCents int64, currency, method string) (*Payment, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	return &Payment{
		id:            uuid.New(),
		reservationID: reservationID,
		amountCents:   amountCents,
		currency:      currency,
		method:        method,
		status:        StatusPending,
		metadata:      NewMetadata(),
	}, nil
}

func ReconstructPayment(
	id, reservationID uuid.UUID,
	amountCents int64,
	currency, method string,
	status Status,
	externalID *string,
	metadata Metadata,
	createdAt, updatedAt time.Time,
) *Payment {
	if metadata == nil {
		metadata = NewMetadata()
	}
	return &Payment{
		id:            id,
		reservationID: reservationID,
		amountCents:   amountCents,
		currency:      currency,
		method:        method,
		status:        status,
		externalID:    externalID,
		metadata:      metadata,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (p *Payment) ID() uuid.UUID            { return p.id }
func (p *Payment) ReservationID() uuid.UUID { return p.reservationID }
func (p *Payment) AmountCents() int64       { return p.amountCents }
func (p *Payment) Currency() string         { return p.currency }
func (p *Payment) Method() string           { return p.method }
func (p *Payment) Status() Status           { return p.status }
func (p *Payment) ExternalID() *string      { return p.externalID }
func (p *Payment) Metadata() Metadata       { return p.metadata }
func (p *Payment) CreatedAt() time.Time     { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time     { return p.updatedAt }

func (p *Payment) AttachExternalID(externalID string) {
	p.externalID = &externalID
}

// Complete marks the payment completed. Completed is never regressed;
// completing twice is a no-op so duplicate notifications are absorbed.
func (p *Payment) Complete() error {
	if p.status == StatusCompleted {
		return nil
	}
	if p.status == StatusFailed {
		return ErrCompletedIsFinal
	}
	p.status = StatusCompleted
	return nil
}

// Fail marks the payment failed with the provider's failure descriptor.
// Failing a completed payment is rejected.
func (p *Payment) Fail(code, message string) error {
	if p.status == StatusCompleted {
		return ErrCompletedIsFinal
	}
	p.status = StatusFailed
	p.metadata.SetLastFailure(code, message)
	return nil
}

package usecase

import (
	"context"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/court"
	"courtbook/internal/domain/payment"
	"courtbook/internal/domain/queue"
	"courtbook/internal/infra/paymongo"
	"courtbook/internal/infra/ratelimit"
	"courtbook/internal/infra/repository"

	"github.com/google/uuid"
)

// Repository and collaborator ports for the usecase layer. The concrete
// implementations live in internal/infra; several usecases share the same
// repository so the interfaces are gathered here instead of redeclared per
// file.

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx repository.DBTX) error) error
}

type CourtRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*court.Court, error)
}

type BookingRepository interface {
	Create(ctx context.Context, tx repository.DBTX, res *booking.Reservation) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*booking.Reservation, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*booking.Reservation, error)
	FindBlockingSlots(ctx context.Context, courtID uuid.UUID, dayStart, dayEnd time.Time) ([]booking.TimeSlot, error)
	UpdateStatus(ctx context.Context, tx repository.DBTX, id uuid.UUID, from, to booking.Status) error
	RequirePayment(ctx context.Context, tx repository.DBTX, id uuid.UUID, totalCents int64) error
	Confirm(ctx context.Context, tx repository.DBTX, id uuid.UUID, paidCents int64, metadataPatch booking.Metadata) error
	SyncPaidAmount(ctx context.Context, tx repository.DBTX, id uuid.UUID, amountCents int64) error
	Cancel(ctx context.Context, tx repository.DBTX, id uuid.UUID, reason string, metadataPatch booking.Metadata) error
	Delete(ctx context.Context, tx repository.DBTX, id uuid.UUID) error
	FindStalePendingPayment(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
	FindRecurrenceGroupMembers(ctx context.Context, groupID uuid.UUID, exceptID uuid.UUID) ([]uuid.UUID, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, tx repository.DBTX, p *payment.Payment) (uuid.UUID, error)
	FindByExternalID(ctx context.Context, externalID string) (*payment.Payment, error)
	FindByProviderRef(ctx context.Context, ref string) (*payment.Payment, error)
	FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*payment.Payment, error)
	Update(ctx context.Context, tx repository.DBTX, id uuid.UUID, status payment.Status, externalID *string, metadataPatch payment.Metadata) error
	TryAcquireLock(ctx context.Context, id uuid.UUID, now time.Time, staleAfter time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, id uuid.UUID) error
}

type QueueSessionRepository interface {
	Create(ctx context.Context, tx repository.DBTX, s *queue.Session) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*queue.Session, error)
	UpdateStatus(ctx context.Context, tx repository.DBTX, id uuid.UUID, from, to queue.SessionStatus, approval queue.ApprovalStatus) error
	IncrementPlayers(ctx context.Context, tx repository.DBTX, id uuid.UUID) (int, error)
	DecrementPlayers(ctx context.Context, tx repository.DBTX, id uuid.UUID) (int, error)
	Close(ctx context.Context, tx repository.DBTX, id uuid.UUID, summary queue.Summary) (bool, error)
	Delete(ctx context.Context, tx repository.DBTX, id uuid.UUID) error
}

type ParticipantRepository interface {
	FindBySessionAndUser(ctx context.Context, sessionID, userID uuid.UUID) (*queue.Participant, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*queue.Participant, error)
	Insert(ctx context.Context, tx repository.DBTX, p *queue.Participant) (uuid.UUID, error)
	Rejoin(ctx context.Context, tx repository.DBTX, id uuid.UUID, joinedAt time.Time) error
	MarkLeft(ctx context.Context, tx repository.DBTX, id uuid.UUID, leftAt time.Time) error
	UpdateAccounting(ctx context.Context, tx repository.DBTX, p *queue.Participant) error
}

type NotificationRepository interface {
	CreateJob(ctx context.Context, tx repository.DBTX, job repository.NotificationJob) error
}

// ProviderClient is the payment provider surface this engine drives:
// checkout source creation at booking time and charge capture when the
// provider reports a source became chargeable.
type ProviderClient interface {
	CreateSource(ctx context.Context, in paymongo.CreateSourceInput) (*paymongo.Source, error)
	CreateCharge(ctx context.Context, in paymongo.CreateChargeInput) (*paymongo.Charge, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

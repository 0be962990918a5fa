package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courtbook/internal/domain/availability"
	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/court"
	"courtbook/internal/domain/queue"
	"courtbook/internal/infra"
	"courtbook/internal/infra/repository"
	"courtbook/internal/pkg/clock"
	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("queue session not found")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrNotOrganizer    = errors.New("only the organizer may perform this action")
	ErrNotApprovable   = errors.New("session is not awaiting approval")
)

// RateLimitedError carries the retry-after hint surfaced to the caller.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

type CreateSessionInput struct {
	CourtID     uuid.UUID
	OrganizerID uuid.UUID
	Start       time.Time
	End         time.Time
	Mode        queue.Mode
	GameFormat  string
	MaxPlayers  int
	CostPerGame int64
	Visibility  queue.Visibility
}

type QueueUseCase interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*queue.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*queue.Session, error)
	ApproveSession(ctx context.Context, id uuid.UUID) (*queue.Session, error)
	RejectSession(ctx context.Context, id uuid.UUID, reason string) (*queue.Session, error)
	CancelSession(ctx context.Context, sessionID, organizerID uuid.UUID) error
	JoinSession(ctx context.Context, sessionID, userID uuid.UUID) error
	LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error
	CloseSession(ctx context.Context, sessionID, organizerID uuid.UUID) (*queue.Summary, error)
	ForceRemoveParticipant(ctx context.Context, sessionID, organizerID, userID uuid.UUID) error
}

type queueUseCaseImpl struct {
	tx               TxRunner
	engine           *availability.Engine
	courtRepo        CourtRepository
	bookingRepo      BookingRepository
	sessionRepo      QueueSessionRepository
	participantRepo  ParticipantRepository
	notificationRepo NotificationRepository
	limiter          RateLimiter
	clock            clock.Clock
	queueCfg         config.QueueConfig
	payments         config.PaymentsConfig
}

func NewQueueUseCase(
	tx TxRunner,
	engine *availability.Engine,
	courtRepo CourtRepository,
	bookingRepo BookingRepository,
	sessionRepo QueueSessionRepository,
	participantRepo ParticipantRepository,
	notificationRepo NotificationRepository,
	limiter RateLimiter,
	clk clock.Clock,
	queueCfg config.QueueConfig,
	payments config.PaymentsConfig,
) QueueUseCase {
	return &queueUseCaseImpl{
		tx:               tx,
		engine:           engine,
		courtRepo:        courtRepo,
		bookingRepo:      bookingRepo,
		sessionRepo:      sessionRepo,
		participantRepo:  participantRepo,
		notificationRepo: notificationRepo,
		limiter:          limiter,
		clock:            clk,
		queueCfg:         queueCfg,
		payments:         payments,
	}
}

// checkRate gates a mutating action before any state change. A denial
// mutates nothing and carries the retry-after hint.
func (u *queueUseCaseImpl) checkRate(ctx context.Context, action string, userID uuid.UUID) error {
	decision, err := u.limiter.Allow(ctx, fmt.Sprintf("%s:%s", action, userID))
	if err != nil {
		// A broken limiter must not take the service down with it.
		slog.Warn("rate limiter unavailable, allowing request", "action", action, "error", err.Error())
		return nil
	}
	if !decision.Allowed {
		return &RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

// CreateSession is the two-write saga: the blocking reservation commits
// first, then the session; a failed session write compensates by deleting
// the reservation so the slot is not silently burned.
func (u *queueUseCaseImpl) CreateSession(ctx context.Context, in CreateSessionInput) (*queue.Session, error) {
	if err := u.checkRate(ctx, "queue_create", in.OrganizerID); err != nil {
		return nil, err
	}

	courtEntity, err := u.courtRepo.FindByID(ctx, in.CourtID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, errs.Wrap(err, "failed to find court")
	}

	start, end := in.Start.UTC(), in.End.UTC()
	lookup := func(date time.Time) ([]booking.TimeSlot, error) {
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		return u.bookingRepo.FindBlockingSlots(ctx, in.CourtID, dayStart, dayStart.AddDate(0, 0, 1))
	}
	result, err := u.engine.ValidateRange(courtEntity, start, end, 1, nil, lookup)
	if err != nil {
		return nil, errs.Wrap(err, "failed to validate session interval")
	}
	if !result.Available {
		return nil, errs.Mark(errs.New(result.Reason), ErrRangeUnavailable)
	}

	slot, err := booking.NewTimeSlot(start, end)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidationFailed)
	}

	requiresApproval := courtEntity.RequiresApproval()
	session, err := queue.NewSession(
		in.CourtID, in.OrganizerID, uuid.Nil, start, end,
		in.Mode, in.GameFormat, in.MaxPlayers, in.CostPerGame, in.Visibility,
		requiresApproval,
	)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidationFailed)
	}

	reservation, err := u.buildSessionReservation(courtEntity, in, slot, session.ID(), requiresApproval)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidationFailed)
	}

	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		_, err := u.bookingRepo.Create(ctx, tx, reservation)
		return err
	}); err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return nil, ErrBookingConflict
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	session = u.rebindSessionReservation(session, reservation.ID())
	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		_, err := u.sessionRepo.Create(ctx, tx, session)
		return err
	}); err != nil {
		u.compensateReservation(ctx, reservation.ID())
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	return session, nil
}

func (u *queueUseCaseImpl) buildSessionReservation(
	c *court.Court,
	in CreateSessionInput,
	slot booking.TimeSlot,
	sessionID uuid.UUID,
	requiresApproval bool,
) (*booking.Reservation, error) {
	status := booking.StatusConfirmed
	if requiresApproval {
		status = booking.StatusPending
	}

	metadata := booking.NewMetadata()
	metadata.SetQueueSessionID(sessionID)

	total := c.PriceCents(slot.Hours(), u.payments.PlatformFeeRate)
	return booking.NewReservation(in.CourtID, in.OrganizerID, slot, status, total, in.MaxPlayers, metadata)
}

// rebindSessionReservation rebuilds the session with the reservation id it
// now belongs to; NewSession could not know it before the reservation write.
func (u *queueUseCaseImpl) rebindSessionReservation(s *queue.Session, reservationID uuid.UUID) *queue.Session {
	return queue.ReconstructSession(
		s.ID(), s.CourtID(), s.OrganizerID(), reservationID, s.Start(), s.End(),
		s.Mode(), s.GameFormat(), s.MaxPlayers(), s.CurrentPlayers(), s.CostPerGame(),
		s.Visibility(), s.Status(), s.Approval(), s.Summary(), s.CreatedAt(), s.UpdatedAt(),
	)
}

func (u *queueUseCaseImpl) compensateReservation(ctx context.Context, reservationID uuid.UUID) {
	err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		return u.bookingRepo.Delete(ctx, tx, reservationID)
	})
	if err != nil {
		slog.Error("saga compensation failed, reservation orphaned",
			"reservation_id", reservationID.String(), "error", err.Error())
	}
}

func (u *queueUseCaseImpl) GetSession(ctx context.Context, id uuid.UUID) (*queue.Session, error) {
	session, err := u.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, errs.Wrap(err, "failed to find session")
	}
	return session, nil
}

// ApproveSession is the venue-admin gate: the session opens and the linked
// reservation moves to pending_payment. The payable total is priced from the
// court row at approval time, not the snapshot taken at creation, so a rate
// change while the session sat in the approval queue bills the current rate.
func (u *queueUseCaseImpl) ApproveSession(ctx context.Context, id uuid.UUID) (*queue.Session, error) {
	session, err := u.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status() != queue.SessionPendingApproval {
		return nil, ErrNotApprovable
	}
	if err := session.Approve(); err != nil {
		return nil, errs.Mark(err, ErrDomainValidationFailed)
	}

	courtEntity, err := u.courtRepo.FindByID(ctx, session.CourtID())
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, errs.Wrap(err, "failed to find court")
	}
	total := courtEntity.PriceCents(session.DurationHours(), u.payments.PlatformFeeRate)

	err = u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := u.sessionRepo.UpdateStatus(ctx, tx, id, queue.SessionPendingApproval, queue.SessionOpen, queue.ApprovalApproved); err != nil {
			return err
		}
		if err := u.bookingRepo.RequirePayment(ctx, tx, session.ReservationID(), total); err != nil {
			return err
		}
		u.notify(ctx, tx, session.OrganizerID(), "session_approved", map[string]any{
			"session_id": id.String(),
		})
		return nil
	})
	if err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return nil, ErrNotApprovable
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return session, nil
}

// RejectSession is the admin counterpart of ApproveSession: the session is
// cancelled with a rejected verdict and the held reservation is released so
// the interval reopens. The organizer is told why.
func (u *queueUseCaseImpl) RejectSession(ctx context.Context, id uuid.UUID, reason string) (*queue.Session, error) {
	if reason == "" {
		return nil, ErrRejectReasonRequired
	}

	session, err := u.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status() != queue.SessionPendingApproval {
		return nil, ErrNotApprovable
	}
	if err := session.Reject(); err != nil {
		return nil, errs.Mark(err, ErrDomainValidationFailed)
	}

	err = u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := u.sessionRepo.UpdateStatus(ctx, tx, id, queue.SessionPendingApproval, queue.SessionCancelled, queue.ApprovalRejected); err != nil {
			return err
		}
		patch := booking.NewMetadata()
		patch.SetCancellationCause(booking.CauseAdminRejected)
		if err := u.bookingRepo.Cancel(ctx, tx, session.ReservationID(), reason, patch); err != nil && !infra.IsKind(err, infra.KindConflict) {
			return err
		}
		u.notify(ctx, tx, session.OrganizerID(), "session_rejected", map[string]any{
			"session_id": id.String(),
			"reason":     reason,
		})
		return nil
	})
	if err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return nil, ErrNotApprovable
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return session, nil
}

// CancelSession lets the organizer withdraw a session nobody has joined yet.
// The linked reservation is released with it; once players are in, closing is
// the only way out.
func (u *queueUseCaseImpl) CancelSession(ctx context.Context, sessionID, organizerID uuid.UUID) error {
	session, err := u.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsOrganizer(organizerID) {
		return ErrNotOrganizer
	}
	if err := session.CheckCancellable(); err != nil {
		return err
	}

	err = u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := u.sessionRepo.UpdateStatus(ctx, tx, sessionID, session.Status(), queue.SessionCancelled, session.Approval()); err != nil {
			return err
		}
		patch := booking.NewMetadata()
		patch.SetCancellationCause(booking.CauseOrganizerCancelled)
		if err := u.bookingRepo.Cancel(ctx, tx, session.ReservationID(), "Cancelled by organizer", patch); err != nil && !infra.IsKind(err, infra.KindConflict) {
			return err
		}
		return nil
	})
	if err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return queue.ErrInvalidTransition
		}
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return nil
}

// JoinSession admits a user. Capacity is enforced by the storage layer's
// atomic counter, not by the advisory snapshot check; a prior participant
// row is reused on rejoin after the cooldown.
func (u *queueUseCaseImpl) JoinSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	if err := u.checkRate(ctx, "queue_join", userID); err != nil {
		return err
	}

	session, err := u.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.CheckJoinable(); err != nil {
		return err
	}

	now := u.clock.Now()
	existing, err := u.participantRepo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil && !infra.IsKind(err, infra.KindNotFound) {
		return errs.Wrap(err, "failed to look up participant")
	}

	if existing != nil {
		if err := existing.CheckRejoin(now, u.queueCfg.RejoinCooldown); err != nil {
			return err
		}
	}

	return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if _, err := u.sessionRepo.IncrementPlayers(ctx, tx, sessionID); err != nil {
			if infra.IsKind(err, infra.KindConflict) {
				return queue.ErrSessionFull
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if existing != nil {
			return u.participantRepo.Rejoin(ctx, tx, existing.ID(), now)
		}
		_, err := u.participantRepo.Insert(ctx, tx, queue.NewParticipant(sessionID, userID, now))
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return queue.ErrAlreadyJoined
		}
		return err
	})
}

// LeaveSession: an owing, unpaid participant cannot leave on
// their own.
func (u *queueUseCaseImpl) LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	if err := u.checkRate(ctx, "queue_leave", userID); err != nil {
		return err
	}

	participant, err := u.findParticipant(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	now := u.clock.Now()
	if err := participant.Leave(now); err != nil {
		return err
	}

	return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := u.participantRepo.MarkLeft(ctx, tx, participant.ID(), now); err != nil {
			return err
		}
		_, err := u.sessionRepo.DecrementPlayers(ctx, tx, sessionID)
		return err
	})
}

// ForceRemoveParticipant is the organizer override of the unpaid-balance
// guard; the amount owed stays on the row as removed.
func (u *queueUseCaseImpl) ForceRemoveParticipant(ctx context.Context, sessionID, organizerID, userID uuid.UUID) error {
	session, err := u.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsOrganizer(organizerID) {
		return ErrNotOrganizer
	}

	participant, err := u.findParticipant(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	now := u.clock.Now()
	if err := participant.ForceRemove(now); err != nil {
		return err
	}

	return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := u.participantRepo.MarkLeft(ctx, tx, participant.ID(), now); err != nil {
			return err
		}
		if _, err := u.sessionRepo.DecrementPlayers(ctx, tx, sessionID); err != nil {
			return err
		}
		u.notify(ctx, tx, userID, "removed_from_session", map[string]any{
			"session_id":  sessionID.String(),
			"amount_owed": participant.AmountOwedCents(),
		})
		return nil
	})
}

// CloseSession persists the terminal summary. Closing again returns the
// stored summary without recomputing or re-notifying.
func (u *queueUseCaseImpl) CloseSession(ctx context.Context, sessionID, organizerID uuid.UUID) (*queue.Summary, error) {
	session, err := u.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOrganizer(organizerID) {
		return nil, ErrNotOrganizer
	}
	if session.Status() == queue.SessionClosed {
		return session.Summary(), nil
	}

	participants, err := u.participantRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list participants")
	}
	summary := queue.BuildSummary(participants)

	var closed bool
	err = u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		closed, err = u.sessionRepo.Close(ctx, tx, sessionID, summary)
		if err != nil {
			return err
		}
		if closed {
			u.notify(ctx, tx, session.OrganizerID(), "session_closed", map[string]any{
				"session_id":    sessionID.String(),
				"total_revenue": summary.TotalRevenue,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if !closed {
		// Lost a close race; the stored summary wins.
		current, err := u.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return current.Summary(), nil
	}
	return &summary, nil
}

func (u *queueUseCaseImpl) findParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*queue.Participant, error) {
	participant, err := u.participantRepo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, queue.ErrParticipantAbsent
		}
		return nil, errs.Wrap(err, "failed to find participant")
	}
	return participant, nil
}

func (u *queueUseCaseImpl) notify(ctx context.Context, tx repository.DBTX, recipient uuid.UUID, kind string, payload map[string]any) {
	err := u.notificationRepo.CreateJob(ctx, tx, repository.NotificationJob{
		RecipientID: recipient,
		Kind:        kind,
		Payload:     payload,
	})
	if err != nil {
		slog.Warn("failed to enqueue notification", "kind", kind, "error", err.Error())
	}
}

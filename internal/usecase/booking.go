package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courtbook/internal/domain/availability"
	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/court"
	"courtbook/internal/domain/payment"
	"courtbook/internal/infra"
	"courtbook/internal/infra/paymongo"
	"courtbook/internal/infra/repository"
	"courtbook/internal/pkg/clock"
	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound         = errors.New("reservation not found")
	ErrBookingConflict         = errors.New("time slot conflict")
	ErrRangeUnavailable        = errors.New("requested range is not available")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrPaymentProcessingFailed = errors.New("payment processing failed")
	ErrRejectReasonRequired    = errors.New("rejection reason is required")

	ErrDomainValidationFailed  = errors.New("domain validation failed")
	ErrDatabaseOperationFailed = errors.New("database operation failed")
)

type CreateBookingInput struct {
	CourtID         uuid.UUID
	UserID          uuid.UUID
	Start           time.Time
	End             time.Time
	RecurrenceWeeks int
	Weekdays        []time.Weekday
	Method          booking.PaymentMethod
	PlayerCount     int
	SuccessURL      string
	FailedURL       string
}

// CreateBookingResult carries everything the client needs to proceed:
// the created reservations and, for e-wallet bookings, the checkout URL.
type CreateBookingResult struct {
	Reservations []*booking.Reservation
	PaymentID    uuid.UUID
	CheckoutURL  string
}

type BookingUseCase interface {
	CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Reservation, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID) ([]*booking.Reservation, error)
	RejectBooking(ctx context.Context, id uuid.UUID, reason string) error
	CancelStalePendingPayments(ctx context.Context) (int, error)
}

type bookingUseCaseImpl struct {
	tx               TxRunner
	engine           *availability.Engine
	courtRepo        CourtRepository
	bookingRepo      BookingRepository
	paymentRepo      PaymentRepository
	notificationRepo NotificationRepository
	provider         ProviderClient
	clock            clock.Clock
	payments         config.PaymentsConfig
}

func NewBookingUseCase(
	tx TxRunner,
	engine *availability.Engine,
	courtRepo CourtRepository,
	bookingRepo BookingRepository,
	paymentRepo PaymentRepository,
	notificationRepo NotificationRepository,
	provider ProviderClient,
	clk clock.Clock,
	payments config.PaymentsConfig,
) BookingUseCase {
	return &bookingUseCaseImpl{
		tx:               tx,
		engine:           engine,
		courtRepo:        courtRepo,
		bookingRepo:      bookingRepo,
		paymentRepo:      paymentRepo,
		notificationRepo: notificationRepo,
		provider:         provider,
		clock:            clk,
		payments:         payments,
	}
}

// CreateBooking validates the requested range, writes every recurrence
// occurrence all-or-nothing, and for e-wallet bookings opens a checkout
// source with the provider. The availability check is advisory; the
// exclusion constraint at write time is what actually prevents a
// double-booking, surfaced as ErrBookingConflict.
func (u *bookingUseCaseImpl) CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	if !in.Method.IsValid() {
		return nil, ErrInvalidPaymentMethod
	}

	courtEntity, err := u.courtRepo.FindByID(ctx, in.CourtID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, errs.Wrap(err, "failed to find court")
	}

	start, end := in.Start.UTC(), in.End.UTC()
	if !start.Before(end) {
		// A closing hour past midnight arrives as end <= start; shift once.
		end = end.AddDate(0, 0, 1)
	}

	lookup := func(date time.Time) ([]booking.TimeSlot, error) {
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		return u.bookingRepo.FindBlockingSlots(ctx, in.CourtID, dayStart, dayStart.AddDate(0, 0, 1))
	}
	result, err := u.engine.ValidateRange(courtEntity, start, end, in.RecurrenceWeeks, in.Weekdays, lookup)
	if err != nil {
		return nil, errs.Wrap(err, "failed to validate range")
	}
	if !result.Available {
		return nil, errs.Mark(errs.New(result.Reason), ErrRangeUnavailable)
	}

	reservations, err := u.buildReservations(courtEntity, in, start, end)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidationFailed)
	}

	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		for _, res := range reservations {
			if _, err := u.bookingRepo.Create(ctx, tx, res); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return nil, ErrBookingConflict
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	out := &CreateBookingResult{Reservations: reservations}
	if in.Method == booking.MethodEWallet {
		paymentID, checkoutURL, err := u.openCheckout(ctx, reservations, in)
		if err != nil {
			return nil, err
		}
		out.PaymentID = paymentID
		out.CheckoutURL = checkoutURL
	}

	u.notifyCreated(ctx, reservations[0])
	return out, nil
}

// buildReservations expands recurrence into one reservation per occurrence.
// Multi-occurrence bookings share a recurrence group tag so the reconciler
// can settle siblings together.
func (u *bookingUseCaseImpl) buildReservations(
	c *court.Court,
	in CreateBookingInput,
	start, end time.Time,
) ([]*booking.Reservation, error) {
	occurrences := availability.Occurrences(start, in.RecurrenceWeeks, in.Weekdays)
	duration := end.Sub(start)
	status := in.Method.InitialStatus(c.RequiresApproval())

	var groupID uuid.UUID
	if len(occurrences) > 1 {
		groupID = uuid.New()
	}

	out := make([]*booking.Reservation, 0, len(occurrences))
	for _, occ := range occurrences {
		occStart := occ.Start(start)
		slot, err := booking.NewTimeSlot(occStart, occStart.Add(duration))
		if err != nil {
			return nil, err
		}

		metadata := booking.NewMetadata()
		if groupID != uuid.Nil {
			metadata.SetRecurrenceGroup(groupID)
		}

		total := c.PriceCents(slot.Hours(), u.payments.PlatformFeeRate)
		res, err := booking.NewReservation(in.CourtID, in.UserID, slot, status, total, in.PlayerCount, metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// openCheckout creates the provider source and the pending payment row for
// an e-wallet booking. The payment is anchored to the first occurrence and
// its amount covers the whole group. A provider failure after the bounded
// retry cancels every occurrence so the slots release.
func (u *bookingUseCaseImpl) openCheckout(
	ctx context.Context,
	reservations []*booking.Reservation,
	in CreateBookingInput,
) (uuid.UUID, string, error) {
	anchor := reservations[0]
	var total int64
	for _, res := range reservations {
		total += res.TotalCents()
	}

	source, err := u.createSourceWithRetry(ctx, paymongo.CreateSourceInput{
		AmountCents: total,
		Currency:    u.payments.Currency,
		SourceType:  "gcash",
		SuccessURL:  in.SuccessURL,
		FailedURL:   in.FailedURL,
		Metadata: map[string]string{
			"reservation_id": anchor.ID().String(),
		},
	})
	if err != nil {
		u.cancelAll(ctx, reservations, "Payment processing failed", booking.CausePaymentProcessingFailed)
		return uuid.Nil, "", errs.Mark(err, ErrPaymentProcessingFailed)
	}

	paymentEntity, err := u.buildPayment(anchor.ID(), total, source.ID)
	if err != nil {
		return uuid.Nil, "", errs.Mark(err, ErrDomainValidationFailed)
	}

	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		_, err := u.paymentRepo.Create(ctx, tx, paymentEntity)
		return err
	}); err != nil {
		u.cancelAll(ctx, reservations, "Payment processing failed", booking.CausePaymentProcessingFailed)
		return uuid.Nil, "", errs.Mark(err, ErrDatabaseOperationFailed)
	}

	return paymentEntity.ID(), source.CheckoutURL, nil
}

func (u *bookingUseCaseImpl) buildPayment(reservationID uuid.UUID, amountCents int64, sourceID string) (*payment.Payment, error) {
	p, err := payment.NewPayment(reservationID, amountCents, u.payments.Currency, "ewallet")
	if err != nil {
		return nil, err
	}
	p.Metadata().SetProviderRef(sourceID)
	return p, nil
}

// createSourceWithRetry retries exactly once, after a short delay, when the
// provider is unreachable. Rejections are not retried.
func (u *bookingUseCaseImpl) createSourceWithRetry(ctx context.Context, in paymongo.CreateSourceInput) (*paymongo.Source, error) {
	source, err := u.provider.CreateSource(ctx, in)
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, paymongo.ErrProviderUnavailable) {
		return nil, err
	}

	slog.Warn("provider unreachable during checkout, retrying once", "error", err.Error())
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}
	return u.provider.CreateSource(ctx, in)
}

func (u *bookingUseCaseImpl) cancelAll(ctx context.Context, reservations []*booking.Reservation, reason, cause string) {
	err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		for _, res := range reservations {
			patch := booking.NewMetadata()
			patch.SetCancellationCause(cause)
			if err := u.bookingRepo.Cancel(ctx, tx, res.ID(), reason, patch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to cancel reservations after payment setup failure",
			"reservation_id", reservations[0].ID().String(), "error", err.Error())
	}
}

func (u *bookingUseCaseImpl) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Reservation, error) {
	res, err := u.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, errs.Wrap(err, "failed to find reservation")
	}
	return res, nil
}

func (u *bookingUseCaseImpl) GetUserBookings(ctx context.Context, userID uuid.UUID) ([]*booking.Reservation, error) {
	out, err := u.bookingRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list reservations")
	}
	return out, nil
}

// RejectBooking is the admin override: any live state moves to cancelled
// with the human-readable reason surfaced to the requester.
func (u *bookingUseCaseImpl) RejectBooking(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		return ErrRejectReasonRequired
	}

	res, err := u.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return ErrBookingNotFound
		}
		return errs.Wrap(err, "failed to find reservation")
	}

	return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		patch := booking.NewMetadata()
		patch.SetCancellationCause(booking.CauseAdminRejected)
		if err := u.bookingRepo.Cancel(ctx, tx, id, reason, patch); err != nil {
			if infra.IsKind(err, infra.KindConflict) {
				return ErrBookingNotFound
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		u.notifyCancelled(ctx, tx, res, reason)
		return nil
	})
}

// CancelStalePendingPayments sweeps reservations still waiting for a
// webhook past the operational timeout and releases their slots.
func (u *bookingUseCaseImpl) CancelStalePendingPayments(ctx context.Context) (int, error) {
	cutoff := u.clock.Now().Add(-u.payments.PendingTimeout)
	ids, err := u.bookingRepo.FindStalePendingPayment(ctx, cutoff)
	if err != nil {
		return 0, errs.Wrap(err, "failed to find stale reservations")
	}

	cancelled := 0
	for _, id := range ids {
		err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
			patch := booking.NewMetadata()
			patch.SetCancellationCause(booking.CausePaymentTimeout)
			return u.bookingRepo.Cancel(ctx, tx, id, "Payment not received in time", patch)
		})
		if err != nil {
			// A reservation confirmed between the query and this write is fine.
			if infra.IsKind(err, infra.KindConflict) {
				continue
			}
			slog.Error("failed to sweep stale reservation", "reservation_id", id.String(), "error", err.Error())
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func (u *bookingUseCaseImpl) notifyCreated(ctx context.Context, res *booking.Reservation) {
	err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		return u.notificationRepo.CreateJob(ctx, tx, repository.NotificationJob{
			RecipientID: res.UserID(),
			Kind:        "booking_created",
			Payload: map[string]any{
				"reservation_id": res.ID().String(),
				"status":         res.Status().String(),
				"start_time":     res.Slot().Start().Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		slog.Warn("failed to enqueue booking notification", "reservation_id", res.ID().String(), "error", err.Error())
	}
}

func (u *bookingUseCaseImpl) notifyCancelled(ctx context.Context, tx repository.DBTX, res *booking.Reservation, reason string) {
	err := u.notificationRepo.CreateJob(ctx, tx, repository.NotificationJob{
		RecipientID: res.UserID(),
		Kind:        "booking_cancelled",
		Payload: map[string]any{
			"reservation_id": res.ID().String(),
			"reason":         reason,
		},
	})
	if err != nil {
		slog.Warn("failed to enqueue cancellation notification", "reservation_id", res.ID().String(), "error", err.Error())
	}
}

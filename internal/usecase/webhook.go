package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/payment"
	"courtbook/internal/infra"
	"courtbook/internal/infra/paymongo"
	"courtbook/internal/infra/repository"
	"courtbook/internal/pkg/clock"
	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var ErrPaymentNotFound = errors.New("payment not found for event")

// WebhookUseCase reconciles inbound provider events against local payment
// and reservation state. Every path is idempotent under at-least-once
// delivery: the processed-events ledger suppresses duplicate side effects
// and the time-boxed soft lock serializes concurrent deliveries for the
// same payment.
type WebhookUseCase interface {
	HandleEvent(ctx context.Context, event *paymongo.Event) error
}

type webhookUseCaseImpl struct {
	tx               TxRunner
	bookingRepo      BookingRepository
	paymentRepo      PaymentRepository
	notificationRepo NotificationRepository
	provider         ProviderClient
	clock            clock.Clock
	payments         config.PaymentsConfig
}

func NewWebhookUseCase(
	tx TxRunner,
	bookingRepo BookingRepository,
	paymentRepo PaymentRepository,
	notificationRepo NotificationRepository,
	provider ProviderClient,
	clk clock.Clock,
	payments config.PaymentsConfig,
) WebhookUseCase {
	return &webhookUseCaseImpl{
		tx:               tx,
		bookingRepo:      bookingRepo,
		paymentRepo:      paymentRepo,
		notificationRepo: notificationRepo,
		provider:         provider,
		clock:            clk,
		payments:         payments,
	}
}

func (u *webhookUseCaseImpl) HandleEvent(ctx context.Context, event *paymongo.Event) error {
	switch event.Type {
	case paymongo.EventSourceChargeable, paymongo.EventPaymentPaid, paymongo.EventPaymentFailed:
	default:
		slog.Info("ignoring webhook event type", "event_id", event.ID, "type", event.Type)
		return nil
	}

	pay, err := u.locatePayment(ctx, event)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			// Nothing actionable; ack so the provider stops retrying.
			slog.Warn("webhook event matches no payment", "event_id", event.ID, "resource_id", event.ResourceID)
			return nil
		}
		return err
	}

	// Idempotency gate: an already-seen event id must not re-apply
	// side effects. It still re-verifies the reservation reached the state
	// this payment implies, repairing a partial earlier run.
	if pay.Metadata().HasProcessed(event.ID) {
		slog.Info("duplicate webhook event, re-verifying outcome", "event_id", event.ID, "payment_id", pay.ID().String())
		return u.reverifyOutcome(ctx, pay, event)
	}

	now := u.clock.Now()
	acquired, err := u.paymentRepo.TryAcquireLock(ctx, pay.ID(), now, u.payments.ProcessingStaleAfter)
	if err != nil {
		return errs.Wrap(err, "failed to acquire processing lock")
	}
	if !acquired {
		// A fresh lock means another delivery is mid-flight; skip and ack.
		slog.Info("payment locked by concurrent delivery, skipping", "event_id", event.ID, "payment_id", pay.ID().String())
		return nil
	}
	defer func() {
		if releaseErr := u.paymentRepo.ReleaseLock(ctx, pay.ID()); releaseErr != nil {
			slog.Error("failed to release processing lock", "payment_id", pay.ID().String(), "error", releaseErr.Error())
		}
	}()

	switch event.Type {
	case paymongo.EventSourceChargeable:
		return u.applySourceChargeable(ctx, pay, event)
	case paymongo.EventPaymentPaid:
		return u.applyPaymentPaid(ctx, pay, event)
	case paymongo.EventPaymentFailed:
		return u.applyPaymentFailed(ctx, pay, event)
	}
	return nil
}

// locatePayment tries each correlation key the provider may carry, in
// order: provider payment id, source id, the checkout reference stashed in
// metadata, and finally the reservation id echoed from checkout metadata.
func (u *webhookUseCaseImpl) locatePayment(ctx context.Context, event *paymongo.Event) (*payment.Payment, error) {
	type lookup func() (*payment.Payment, error)
	lookups := []lookup{}

	if event.ResourceID != "" {
		lookups = append(lookups,
			func() (*payment.Payment, error) { return u.paymentRepo.FindByExternalID(ctx, event.ResourceID) },
			func() (*payment.Payment, error) { return u.paymentRepo.FindByProviderRef(ctx, event.ResourceID) },
		)
	}
	if event.SourceID != "" {
		lookups = append(lookups,
			func() (*payment.Payment, error) { return u.paymentRepo.FindByProviderRef(ctx, event.SourceID) },
		)
	}
	if raw, ok := event.Metadata["reservation_id"]; ok {
		if reservationID, err := uuid.Parse(raw); err == nil {
			lookups = append(lookups,
				func() (*payment.Payment, error) { return u.paymentRepo.FindByReservationID(ctx, reservationID) },
			)
		}
	}

	for _, fn := range lookups {
		pay, err := fn()
		if err == nil {
			return pay, nil
		}
		if !infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Wrap(err, "payment lookup failed")
		}
	}
	return nil, ErrPaymentNotFound
}

// applySourceChargeable captures the charge for a source the user has
// authorized. Charge success converges with the payment-succeeded path;
// charge failure fails the payment and cancels the reservation.
func (u *webhookUseCaseImpl) applySourceChargeable(ctx context.Context, pay *payment.Payment, event *paymongo.Event) error {
	charge, err := u.provider.CreateCharge(ctx, paymongo.CreateChargeInput{
		SourceID:    event.ResourceID,
		AmountCents: pay.AmountCents(),
		Currency:    pay.Currency(),
		Description: "court reservation " + pay.ReservationID().String(),
	})
	if err != nil {
		slog.Error("charge creation failed", "event_id", event.ID, "payment_id", pay.ID().String(), "error", err.Error())
		return u.recordFailure(ctx, pay, event, "charge_creation_failed", err.Error(), "Payment processing failed", booking.CausePaymentProcessingFailed)
	}

	if err := pay.Complete(); err != nil {
		return errs.Wrap(err, "cannot complete payment")
	}
	pay.AttachExternalID(charge.ID)

	patch := payment.NewMetadata()
	patch.MarkProcessed(event.ID)
	mergeLedger(patch, pay)
	patch.SetLastSuccess(event.ID)

	externalID := charge.ID
	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		return u.paymentRepo.Update(ctx, tx, pay.ID(), payment.StatusCompleted, &externalID, patch)
	}); err != nil {
		return errs.Wrap(err, "failed to persist completed payment")
	}

	return u.confirmReservation(ctx, pay, event.ID)
}

// applyPaymentPaid handles the provider's own success notification. The
// charge-creation path may already have completed the payment; either way
// both converge on the same idempotent reservation transition.
func (u *webhookUseCaseImpl) applyPaymentPaid(ctx context.Context, pay *payment.Payment, event *paymongo.Event) error {
	if pay.Status() != payment.StatusCompleted {
		if err := pay.Complete(); err != nil {
			return errs.Wrap(err, "cannot complete payment")
		}
	}

	patch := payment.NewMetadata()
	patch.MarkProcessed(event.ID)
	mergeLedger(patch, pay)
	patch.SetLastSuccess(event.ID)

	var externalID *string
	if event.ResourceID != "" {
		externalID = &event.ResourceID
	}
	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		return u.paymentRepo.Update(ctx, tx, pay.ID(), payment.StatusCompleted, externalID, patch)
	}); err != nil {
		return errs.Wrap(err, "failed to persist completed payment")
	}

	return u.confirmReservation(ctx, pay, event.ID)
}

func (u *webhookUseCaseImpl) applyPaymentFailed(ctx context.Context, pay *payment.Payment, event *paymongo.Event) error {
	code, message := event.FailureCode, event.FailureMessage
	if code == "" {
		code = "payment_failed"
	}
	return u.recordFailure(ctx, pay, event, code, message, "Payment failed", booking.CausePaymentFailed)
}

// recordFailure fails the payment, appends the event to the ledger, and
// cancels the linked reservation (and recurrence siblings) so the slots
// release.
func (u *webhookUseCaseImpl) recordFailure(
	ctx context.Context,
	pay *payment.Payment,
	event *paymongo.Event,
	code, message, reason, cause string,
) error {
	if err := pay.Fail(code, message); err != nil {
		if errors.Is(err, payment.ErrCompletedIsFinal) {
			// A completed payment never regresses; log and ack.
			slog.Warn("ignoring failure event for completed payment", "event_id", event.ID, "payment_id", pay.ID().String())
			return nil
		}
		return errs.Wrap(err, "cannot fail payment")
	}

	patch := payment.NewMetadata()
	patch.MarkProcessed(event.ID)
	mergeLedger(patch, pay)
	patch.SetLastFailure(code, message)

	if err := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		return u.paymentRepo.Update(ctx, tx, pay.ID(), payment.StatusFailed, nil, patch)
	}); err != nil {
		return errs.Wrap(err, "failed to persist failed payment")
	}

	return u.cancelReservations(ctx, pay, reason, cause, code, message)
}

func (u *webhookUseCaseImpl) cancelReservations(ctx context.Context, pay *payment.Payment, reason, cause, code, message string) error {
	ids, res, err := u.paymentReservations(ctx, pay)
	if err != nil {
		return err
	}

	return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		cancelledAny := false
		for _, id := range ids {
			patch := booking.NewMetadata()
			patch.SetCancellationCause(cause)
			patch.SetPaymentFailure(code, message)
			if err := u.bookingRepo.Cancel(ctx, tx, id, reason, patch); err != nil {
				// Already terminal is fine under redelivery.
				if infra.IsKind(err, infra.KindConflict) {
					continue
				}
				return errs.Wrap(err, "failed to cancel reservation")
			}
			cancelledAny = true
		}
		// Redelivered failures that cancelled nothing notify nothing.
		if cancelledAny {
			u.notifyResult(ctx, tx, res.UserID(), "payment_failed", map[string]any{
				"reservation_id": pay.ReservationID().String(),
				"reason":         reason,
			})
		}
		return nil
	})
}

// confirmReservation is the idempotent transition routine shared by both
// success paths. An already-confirmed reservation only gets its paid
// amount synced upward; otherwise pending_payment→paid→confirmed, with the
// intermediate step skipped when the deployment does not support the paid
// status or storage rejects it.
func (u *webhookUseCaseImpl) confirmReservation(ctx context.Context, pay *payment.Payment, eventID string) error {
	ids, anchor, err := u.paymentReservations(ctx, pay)
	if err != nil {
		return err
	}

	now := u.clock.Now()
	for _, id := range ids {
		res := anchor
		if id != anchor.ID() {
			res, err = u.bookingRepo.FindByID(ctx, id)
			if err != nil {
				return errs.Wrap(err, "failed to load group reservation")
			}
		}

		if err := u.confirmOne(ctx, res, eventID, now); err != nil {
			return err
		}
	}

	// Notify only after the reservation writes succeeded; a notification
	// failure never rolls back or re-raises.
	notifyErr := u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		return u.notificationRepo.CreateJob(ctx, tx, repository.NotificationJob{
			RecipientID: anchor.UserID(),
			Kind:        "payment_confirmed",
			Payload: map[string]any{
				"reservation_id": anchor.ID().String(),
				"amount_cents":   pay.AmountCents(),
			},
		})
	})
	if notifyErr != nil {
		slog.Warn("failed to enqueue confirmation notification", "reservation_id", anchor.ID().String(), "error", notifyErr.Error())
	}
	return nil
}

func (u *webhookUseCaseImpl) confirmOne(ctx context.Context, res *booking.Reservation, eventID string, now time.Time) error {
	if res.Status() == booking.StatusConfirmed {
		return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
			return u.bookingRepo.SyncPaidAmount(ctx, tx, res.ID(), res.TotalCents())
		})
	}
	if res.Status().IsTerminal() {
		slog.Warn("payment confirmed for terminal reservation", "reservation_id", res.ID().String(), "status", res.Status().String())
		return nil
	}

	return u.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if res.Status() == booking.StatusPendingPayment && u.payments.SupportsPaidStatus {
			err := u.bookingRepo.UpdateStatus(ctx, tx, res.ID(), booking.StatusPendingPayment, booking.StatusPaid)
			switch {
			case err == nil:
			case infra.IsKind(err, infra.KindCheckViolation):
				// Storage predates the paid status; fall through to
				// confirmed directly rather than hard-failing.
				slog.Warn("paid status rejected by storage, falling back to direct confirmation", "reservation_id", res.ID().String())
			case infra.IsKind(err, infra.KindConflict):
				// Status moved underneath us; Confirm below still converges.
			default:
				return errs.Wrap(err, "failed to mark reservation paid")
			}
		}

		patch := booking.NewMetadata()
		patch.SetConfirmedByEvent(eventID)
		patch.AppendStatusHistory(booking.StatusConfirmed.String(), now)
		err := u.bookingRepo.Confirm(ctx, tx, res.ID(), res.TotalCents(), patch)
		if infra.IsKind(err, infra.KindConflict) {
			// The reservation went terminal between our snapshot and this
			// write (stale-payment sweep, admin rejection); it stays there.
			slog.Warn("reservation went terminal before confirmation", "reservation_id", res.ID().String())
			return nil
		}
		return err
	})
}

// reverifyOutcome is the duplicate-event path: no side effects re-applied,
// but the reservation is checked against what this payment's state implies
// and repaired if an earlier run died between the payment and reservation
// writes.
func (u *webhookUseCaseImpl) reverifyOutcome(ctx context.Context, pay *payment.Payment, event *paymongo.Event) error {
	switch pay.Status() {
	case payment.StatusCompleted:
		return u.confirmReservationQuiet(ctx, pay, event.ID)
	case payment.StatusFailed:
		return u.cancelReservations(ctx, pay, "Payment failed", booking.CausePaymentFailed, "payment_failed", "")
	default:
		return nil
	}
}

// confirmReservationQuiet repairs reservation state without dispatching a
// second notification; each logical payment event notifies once.
func (u *webhookUseCaseImpl) confirmReservationQuiet(ctx context.Context, pay *payment.Payment, eventID string) error {
	ids, anchor, err := u.paymentReservations(ctx, pay)
	if err != nil {
		return err
	}

	now := u.clock.Now()
	for _, id := range ids {
		res := anchor
		if id != anchor.ID() {
			res, err = u.bookingRepo.FindByID(ctx, id)
			if err != nil {
				return errs.Wrap(err, "failed to load group reservation")
			}
		}
		if err := u.confirmOne(ctx, res, eventID, now); err != nil {
			return err
		}
	}
	return nil
}

// paymentReservations resolves the anchor reservation and any recurrence
// group siblings settled by the same payment. The anchor comes first.
func (u *webhookUseCaseImpl) paymentReservations(ctx context.Context, pay *payment.Payment) ([]uuid.UUID, *booking.Reservation, error) {
	anchor, err := u.bookingRepo.FindByID(ctx, pay.ReservationID())
	if err != nil {
		return nil, nil, errs.Wrap(err, "failed to load reservation")
	}

	ids := []uuid.UUID{anchor.ID()}
	if groupID, ok := anchor.Metadata().RecurrenceGroup(); ok {
		siblings, err := u.bookingRepo.FindRecurrenceGroupMembers(ctx, groupID, anchor.ID())
		if err != nil {
			return nil, nil, errs.Wrap(err, "failed to load recurrence group")
		}
		ids = append(ids, siblings...)
	}
	return ids, anchor, nil
}

func (u *webhookUseCaseImpl) notifyResult(ctx context.Context, tx repository.DBTX, recipient uuid.UUID, kind string, payload map[string]any) {
	if err := u.notificationRepo.CreateJob(ctx, tx, repository.NotificationJob{
		RecipientID: recipient,
		Kind:        kind,
		Payload:     payload,
	}); err != nil {
		slog.Warn("failed to enqueue notification", "kind", kind, "error", err.Error())
	}
}

// mergeLedger copies the payment's existing processed-events ledger into
// the patch so the jsonb merge replaces the array with the grown version
// instead of dropping earlier ids.
func mergeLedger(patch payment.Metadata, pay *payment.Payment) {
	for _, id := range pay.Metadata().ProcessedEvents() {
		patch.MarkProcessed(id)
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const createReservationSQL = `
INSERT INTO reservations (
	id, court_id, user_id, start_time, end_time,
	status, total_cents, paid_cents, player_count, metadata, cancel_reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

// Create inserts a reservation. The exclusion constraint on
// (court_id, during) rejects overlapping blocking intervals; that surfaces
// as KindConflict so callers can distinguish "slot taken" from failure.
func (r *BookingRepository) Create(ctx context.Context, tx DBTX, res *booking.Reservation) (uuid.UUID, error) {
	metadataJSON, err := json.Marshal(res.Metadata())
	if err != nil {
		return uuid.Nil, infra.WrapRepoErr("failed to encode metadata", err)
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, createReservationSQL,
		res.ID(), res.CourtID(), res.UserID(), res.Slot().Start(), res.Slot().End(),
		res.Status().String(), res.TotalCents(), res.PaidCents(), res.PlayerCount(),
		metadataJSON, res.CancelReason(),
	).Scan(&id)
	if err != nil {
		kind := infra.KindFromPgError(err)
		return uuid.Nil, infra.WrapRepoErr("failed to create reservation", err, kind)
	}
	return id, nil
}

const reservationColumns = `
	id, court_id, user_id, start_time, end_time, status,
	total_cents, paid_cents, player_count, metadata, cancel_reason,
	created_at, updated_at, cancelled_at`

func (r *BookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("reservation not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find reservation", err)
	}
	return res, nil
}

func (r *BookingRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*booking.Reservation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = $1 ORDER BY start_time DESC`,
		userID,
	)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list reservations", err)
	}
	defer rows.Close()

	var out []*booking.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan reservation", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate reservations", err)
	}
	return out, nil
}

const blockingForCourtDaySQL = `
SELECT start_time, end_time
FROM reservations
WHERE court_id = $1
  AND status IN ('pending', 'pending_payment', 'paid', 'confirmed')
  AND start_time < $3
  AND end_time > $2
ORDER BY start_time`

// FindBlockingSlots returns the blocking intervals overlapping [dayStart,
// dayEnd) for availability computation.
func (r *BookingRepository) FindBlockingSlots(ctx context.Context, courtID uuid.UUID, dayStart, dayEnd time.Time) ([]booking.TimeSlot, error) {
	rows, err := r.db.Query(ctx, blockingForCourtDaySQL, courtID, dayStart, dayEnd)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query blocking reservations", err)
	}
	defer rows.Close()

	var out []booking.TimeSlot
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, infra.WrapRepoErr("failed to scan blocking interval", err)
		}
		slot, err := booking.NewTimeSlot(start, end)
		if err != nil {
			return nil, infra.WrapRepoErr("corrupt reservation interval", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate blocking intervals", err)
	}
	return out, nil
}

const updateStatusSQL = `
UPDATE reservations
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2`

// UpdateStatus performs a compare-and-set on status. A zero-row update
// means the reservation moved underneath us and surfaces as KindConflict.
// A status value rejected by the table's CHECK constraint surfaces as
// KindCheckViolation (the paid-status fallback hinges on this).
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, from, to booking.Status) error {
	tag, err := tx.Exec(ctx, updateStatusSQL, id, from.String(), to.String())
	if err != nil {
		kind := infra.KindFromPgError(err)
		return infra.WrapRepoErr("failed to update reservation status", err, kind)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation status changed concurrently", nil, infra.KindConflict)
	}
	return nil
}

const confirmReservationSQL = `
UPDATE reservations
SET status = 'confirmed',
    paid_cents = $2,
    metadata = metadata || $3::jsonb,
    updated_at = now()
WHERE id = $1 AND status NOT IN ('cancelled', 'completed')`

// Confirm writes the confirmed terminal state with the paid amount and a
// metadata breadcrumb, from any intermediate status. The guard keeps a
// reservation cancelled mid-flight (sweeper, admin reject) from being
// resurrected; zero rows surfaces as KindConflict. The metadata patch is
// merged so unrelated keys survive.
func (r *BookingRepository) Confirm(ctx context.Context, tx DBTX, id uuid.UUID, paidCents int64, metadataPatch booking.Metadata) error {
	patchJSON, err := json.Marshal(metadataPatch)
	if err != nil {
		return infra.WrapRepoErr("failed to encode metadata patch", err)
	}
	tag, err := tx.Exec(ctx, confirmReservationSQL, id, paidCents, patchJSON)
	if err != nil {
		return infra.WrapRepoErr("failed to confirm reservation", err, infra.KindFromPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation terminal or missing", nil, infra.KindConflict)
	}
	return nil
}

const requirePaymentSQL = `
UPDATE reservations
SET status = 'pending_payment', total_cents = $2, updated_at = now()
WHERE id = $1 AND status = 'pending'`

// RequirePayment moves an approval-gated reservation to pending_payment
// with the total priced at approval time. Zero rows means the reservation
// left pending underneath us and surfaces as KindConflict.
func (r *BookingRepository) RequirePayment(ctx context.Context, tx DBTX, id uuid.UUID, totalCents int64) error {
	tag, err := tx.Exec(ctx, requirePaymentSQL, id, totalCents)
	if err != nil {
		return infra.WrapRepoErr("failed to require payment", err, infra.KindFromPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation no longer pending", nil, infra.KindConflict)
	}
	return nil
}

const syncPaidAmountSQL = `
UPDATE reservations
SET paid_cents = $2, updated_at = now()
WHERE id = $1 AND paid_cents < $2`

// SyncPaidAmount raises paid_cents to amount if the stored value is lower.
// Used by the reconciler's idempotent re-sync on already-confirmed rows.
func (r *BookingRepository) SyncPaidAmount(ctx context.Context, tx DBTX, id uuid.UUID, amountCents int64) error {
	if _, err := tx.Exec(ctx, syncPaidAmountSQL, id, amountCents); err != nil {
		return infra.WrapRepoErr("failed to sync paid amount", err)
	}
	return nil
}

const cancelReservationSQL = `
UPDATE reservations
SET status = 'cancelled',
    cancel_reason = $2,
    metadata = metadata || $3::jsonb,
    cancelled_at = now(),
    updated_at = now()
WHERE id = $1 AND status NOT IN ('cancelled', 'completed')`

// Cancel releases the slot: once the row leaves the blocking status set the
// exclusion constraint no longer counts it. Cancelling an already-terminal
// reservation affects zero rows and is reported as KindConflict.
func (r *BookingRepository) Cancel(ctx context.Context, tx DBTX, id uuid.UUID, reason string, metadataPatch booking.Metadata) error {
	patchJSON, err := json.Marshal(metadataPatch)
	if err != nil {
		return infra.WrapRepoErr("failed to encode metadata patch", err)
	}
	tag, err := tx.Exec(ctx, cancelReservationSQL, id, reason, patchJSON)
	if err != nil {
		return infra.WrapRepoErr("failed to cancel reservation", err, infra.KindFromPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation already terminal", nil, infra.KindConflict)
	}
	return nil
}

// Delete physically removes a reservation. Only the queue-session saga's
// compensation path may use this; everywhere else cancellation is a status
// write.
func (r *BookingRepository) Delete(ctx context.Context, tx DBTX, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id); err != nil {
		return infra.WrapRepoErr("failed to delete reservation", err)
	}
	return nil
}

const stalePendingPaymentSQL = `
SELECT id FROM reservations
WHERE status = 'pending_payment' AND created_at < $1`

// FindStalePendingPayment lists reservations still awaiting a webhook past
// the operational timeout, for the sweeper to cancel.
func (r *BookingRepository) FindStalePendingPayment(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, stalePendingPaymentSQL, olderThan)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query stale pending reservations", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, infra.WrapRepoErr("failed to scan reservation id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate stale reservations", err)
	}
	return ids, nil
}

const groupMembersSQL = `
SELECT id FROM reservations
WHERE metadata->>'recurrence_group' = $1 AND id <> $2`

// FindRecurrenceGroupMembers returns sibling reservations sharing the
// recurrence group tag, excluding the anchor.
func (r *BookingRepository) FindRecurrenceGroupMembers(ctx context.Context, groupID uuid.UUID, exceptID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, groupMembersSQL, groupID.String(), exceptID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query recurrence group", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, infra.WrapRepoErr("failed to scan reservation id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate recurrence group", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*booking.Reservation, error) {
	var (
		id, courtID, userID    uuid.UUID
		startTime, endTime     time.Time
		status                 string
		totalCents, paidCents  int64
		playerCount            int
		metadataJSON           []byte
		cancelReason           *string
		createdAt, updatedAt   time.Time
		cancelledAt            *time.Time
	)
	if err := row.Scan(
		&id, &courtID, &userID, &startTime, &endTime, &status,
		&totalCents, &paidCents, &playerCount, &metadataJSON, &cancelReason,
		&createdAt, &updatedAt, &cancelledAt,
	); err != nil {
		return nil, err
	}

	slot, err := booking.NewTimeSlot(startTime, endTime)
	if err != nil {
		return nil, err
	}

	metadata := booking.NewMetadata()
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, err
		}
	}

	return booking.ReconstructReservation(
		id, courtID, userID, slot, booking.Status(status),
		totalCents, paidCents, playerCount, metadata, cancelReason,
		createdAt, updatedAt, cancelledAt,
	), nil
}

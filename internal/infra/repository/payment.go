package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"courtbook/internal/domain/payment"
	"courtbook/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const createPaymentSQL = `
INSERT INTO payments (
	id, reservation_id, amount_cents, currency, method, status, external_id, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

func (r *PaymentRepository) Create(ctx context.Context, tx DBTX, p *payment.Payment) (uuid.UUID, error) {
	metadataJSON, err := json.Marshal(p.Metadata())
	if err != nil {
		return uuid.Nil, infra.WrapRepoErr("failed to encode payment metadata", err)
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, createPaymentSQL,
		p.ID(), p.ReservationID(), p.AmountCents(), p.Currency(), p.Method(),
		p.Status().String(), p.ExternalID(), metadataJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, infra.WrapRepoErr("failed to create payment", err, infra.KindFromPgError(err))
	}
	return id, nil
}

const paymentColumns = `
	id, reservation_id, amount_cents, currency, method, status,
	external_id, metadata, created_at, updated_at`

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return r.scanOne(row, "payment not found")
}

// FindByExternalID looks a payment up by the provider-assigned id.
func (r *PaymentRepository) FindByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE external_id = $1`, externalID)
	return r.scanOne(row, "payment not found by external id")
}

// FindByProviderRef matches the reference the checkout flow stashed in
// metadata (source id), the fallback lookup when the provider omits the
// external id.
func (r *PaymentRepository) FindByProviderRef(ctx context.Context, ref string) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE metadata->>'provider_ref' = $1`, ref)
	return r.scanOne(row, "payment not found by provider ref")
}

func (r *PaymentRepository) FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reservation_id = $1 ORDER BY created_at DESC LIMIT 1`,
		reservationID)
	return r.scanOne(row, "payment not found for reservation")
}

const updatePaymentSQL = `
UPDATE payments
SET status = $2,
    external_id = COALESCE($3, external_id),
    metadata = metadata || $4::jsonb,
    updated_at = now()
WHERE id = $1`

// Update persists status, external id, and a merged metadata patch. The
// jsonb merge keeps keys the patch does not mention, so the idempotency
// ledger and foreign keys written by other flows survive.
func (r *PaymentRepository) Update(ctx context.Context, tx DBTX, id uuid.UUID, status payment.Status, externalID *string, metadataPatch payment.Metadata) error {
	patchJSON, err := json.Marshal(metadataPatch)
	if err != nil {
		return infra.WrapRepoErr("failed to encode payment metadata patch", err)
	}
	tag, err := tx.Exec(ctx, updatePaymentSQL, id, status.String(), externalID, patchJSON)
	if err != nil {
		return infra.WrapRepoErr("failed to update payment", err, infra.KindFromPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
	}
	return nil
}

const acquireLockSQL = `
UPDATE payments
SET metadata = metadata || jsonb_build_object('processing', true, 'processing_started_at', $2::text),
    updated_at = now()
WHERE id = $1
  AND (
	COALESCE((metadata->>'processing')::boolean, false) = false
	OR COALESCE((metadata->>'processing_started_at')::timestamptz, 'epoch'::timestamptz) < $3
  )`

// TryAcquireLock takes the processing soft lock unless another delivery
// holds one younger than the staleness threshold. The predicate and write
// are a single statement so two concurrent deliveries cannot both win.
func (r *PaymentRepository) TryAcquireLock(ctx context.Context, id uuid.UUID, now time.Time, staleAfter time.Duration) (bool, error) {
	staleBefore := now.Add(-staleAfter)
	tag, err := r.db.Exec(ctx, acquireLockSQL, id, now.UTC().Format(time.RFC3339), staleBefore)
	if err != nil {
		return false, infra.WrapRepoErr("failed to acquire processing lock", err)
	}
	return tag.RowsAffected() > 0, nil
}

const releaseLockSQL = `
UPDATE payments
SET metadata = (metadata - 'processing_started_at') || jsonb_build_object('processing', false),
    updated_at = now()
WHERE id = $1`

func (r *PaymentRepository) ReleaseLock(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, releaseLockSQL, id); err != nil {
		return infra.WrapRepoErr("failed to release processing lock", err)
	}
	return nil
}

func (r *PaymentRepository) scanOne(row pgx.Row, notFoundMsg string) (*payment.Payment, error) {
	var (
		id, reservationID    uuid.UUID
		amountCents          int64
		currency, method     string
		status               string
		externalID           *string
		metadataJSON         []byte
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&id, &reservationID, &amountCents, &currency, &method, &status,
		&externalID, &metadataJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(notFoundMsg, err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan payment", err)
	}

	metadata := payment.NewMetadata()
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, infra.WrapRepoErr("corrupt payment metadata", err)
		}
	}

	return payment.ReconstructPayment(
		id, reservationID, amountCents, currency, method,
		payment.Status(status), externalID, metadata, createdAt, updatedAt,
	), nil
}

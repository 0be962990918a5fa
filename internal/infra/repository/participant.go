package repository

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/domain/queue"
	"courtbook/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `
	id, session_id, user_id, status, games_played, games_won,
	amount_owed_cents, payment_state, joined_at, left_at`

// FindBySessionAndUser fetches the single row the (session_id, user_id)
// uniqueness constraint allows, left or not.
func (r *ParticipantRepository) FindBySessionAndUser(ctx context.Context, sessionID, userID uuid.UUID) (*queue.Participant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM queue_participants WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID)
	return scanParticipant(row)
}

func (r *ParticipantRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*queue.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+participantColumns+` FROM queue_participants WHERE session_id = $1 ORDER BY joined_at`,
		sessionID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list participants", err)
	}
	defer rows.Close()

	var out []*queue.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate participants", err)
	}
	return out, nil
}

const insertParticipantSQL = `
INSERT INTO queue_participants (
	id, session_id, user_id, status, games_played, games_won,
	amount_owed_cents, payment_state, joined_at, left_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`

func (r *ParticipantRepository) Insert(ctx context.Context, tx DBTX, p *queue.Participant) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, insertParticipantSQL,
		p.ID(), p.SessionID(), p.UserID(), string(p.Status()),
		p.GamesPlayed(), p.GamesWon(), p.AmountOwedCents(), string(p.PaymentState()),
		p.JoinedAt(), p.LeftAt(),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, infra.WrapRepoErr("failed to insert participant", err, infra.KindFromPgError(err))
	}
	return id, nil
}

const rejoinParticipantSQL = `
UPDATE queue_participants
SET status = $2, left_at = NULL, joined_at = $3
WHERE id = $1 AND status = 'left'`

// Rejoin resets the existing row rather than inserting a second one; the
// (session_id, user_id) uniqueness constraint forbids duplicates.
func (r *ParticipantRepository) Rejoin(ctx context.Context, tx DBTX, id uuid.UUID, joinedAt time.Time) error {
	tag, err := tx.Exec(ctx, rejoinParticipantSQL, id, string(queue.ParticipantWaiting), joinedAt)
	if err != nil {
		return infra.WrapRepoErr("failed to rejoin participant", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("participant is not in a left state", nil, infra.KindConflict)
	}
	return nil
}

const markLeftSQL = `
UPDATE queue_participants
SET status = 'left', left_at = $2
WHERE id = $1 AND status <> 'left'`

func (r *ParticipantRepository) MarkLeft(ctx context.Context, tx DBTX, id uuid.UUID, leftAt time.Time) error {
	tag, err := tx.Exec(ctx, markLeftSQL, id, leftAt)
	if err != nil {
		return infra.WrapRepoErr("failed to mark participant left", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("participant already left", nil, infra.KindConflict)
	}
	return nil
}

const updateAccountingSQL = `
UPDATE queue_participants
SET games_played = $2, games_won = $3, amount_owed_cents = $4, payment_state = $5
WHERE id = $1`

// UpdateAccounting writes the game and balance counters after a domain
// mutation.
func (r *ParticipantRepository) UpdateAccounting(ctx context.Context, tx DBTX, p *queue.Participant) error {
	tag, err := tx.Exec(ctx, updateAccountingSQL,
		p.ID(), p.GamesPlayed(), p.GamesWon(), p.AmountOwedCents(), string(p.PaymentState()))
	if err != nil {
		return infra.WrapRepoErr("failed to update participant accounting", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("participant not found", nil, infra.KindNotFound)
	}
	return nil
}

func scanParticipant(row pgx.Row) (*queue.Participant, error) {
	var (
		id, sessionID, userID uuid.UUID
		status                string
		gamesPlayed, gamesWon int
		amountOwedCents       int64
		paymentState          string
		joinedAt              time.Time
		leftAt                *time.Time
	)
	err := row.Scan(
		&id, &sessionID, &userID, &status, &gamesPlayed, &gamesWon,
		&amountOwedCents, &paymentState, &joinedAt, &leftAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("participant not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan participant", err)
	}
	return queue.ReconstructParticipant(
		id, sessionID, userID, queue.ParticipantStatus(status),
		gamesPlayed, gamesWon, amountOwedCents, queue.PaymentState(paymentState),
		joinedAt, leftAt,
	), nil
}

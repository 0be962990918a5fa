package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"courtbook/internal/domain/queue"
	"courtbook/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type QueueSessionRepository struct {
	db DBTX
}

func NewQueueSessionRepository(db DBTX) *QueueSessionRepository {
	return &QueueSessionRepository{db: db}
}

const createSessionSQL = `
INSERT INTO queue_sessions (
	id, court_id, organizer_id, reservation_id, start_time, end_time,
	mode, game_format, max_players, current_players, cost_per_game_cents,
	visibility, status, approval_status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`

func (r *QueueSessionRepository) Create(ctx context.Context, tx DBTX, s *queue.Session) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, createSessionSQL,
		s.ID(), s.CourtID(), s.OrganizerID(), s.ReservationID(), s.Start(), s.End(),
		string(s.Mode()), s.GameFormat(), s.MaxPlayers(), s.CurrentPlayers(), s.CostPerGame(),
		string(s.Visibility()), s.Status().String(), string(s.Approval()),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, infra.WrapRepoErr("failed to create queue session", err, infra.KindFromPgError(err))
	}
	return id, nil
}

const sessionColumns = `
	id, court_id, organizer_id, reservation_id, start_time, end_time,
	mode, game_format, max_players, current_players, cost_per_game_cents,
	visibility, status, approval_status, summary, created_at, updated_at`

func (r *QueueSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*queue.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM queue_sessions WHERE id = $1`, id)
	return scanSession(row)
}

const updateSessionStatusSQL = `
UPDATE queue_sessions
SET status = $3, approval_status = $4, updated_at = now()
WHERE id = $1 AND status = $2`

// UpdateStatus is a compare-and-set on session status; zero rows means a
// concurrent transition won.
func (r *QueueSessionRepository) UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, from, to queue.SessionStatus, approval queue.ApprovalStatus) error {
	tag, err := tx.Exec(ctx, updateSessionStatusSQL, id, from.String(), to.String(), string(approval))
	if err != nil {
		return infra.WrapRepoErr("failed to update session status", err, infra.KindFromPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("session status changed concurrently", nil, infra.KindConflict)
	}
	return nil
}

const incrementPlayersSQL = `
UPDATE queue_sessions
SET current_players = current_players + 1, updated_at = now()
WHERE id = $1
  AND current_players < max_players
  AND status IN ('open', 'active')
RETURNING current_players`

// IncrementPlayers admits one participant atomically: the capacity check
// and the increment are one statement, never read-modify-write. Zero
// rows means the session is full or not joinable.
func (r *QueueSessionRepository) IncrementPlayers(ctx context.Context, tx DBTX, id uuid.UUID) (int, error) {
	var current int
	err := tx.QueryRow(ctx, incrementPlayersSQL, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, infra.WrapRepoErr("session full or not joinable", err, infra.KindConflict)
		}
		return 0, infra.WrapRepoErr("failed to increment player count", err)
	}
	return current, nil
}

const decrementPlayersSQL = `
UPDATE queue_sessions
SET current_players = greatest(current_players - 1, 0), updated_at = now()
WHERE id = $1
RETURNING current_players`

func (r *QueueSessionRepository) DecrementPlayers(ctx context.Context, tx DBTX, id uuid.UUID) (int, error) {
	var current int
	if err := tx.QueryRow(ctx, decrementPlayersSQL, id).Scan(&current); err != nil {
		return 0, infra.WrapRepoErr("failed to decrement player count", err)
	}
	return current, nil
}

const closeSessionSQL = `
UPDATE queue_sessions
SET status = 'closed', summary = $2, updated_at = now()
WHERE id = $1 AND status <> 'closed'`

// Close persists the terminal summary. Closing an already-closed session
// affects zero rows, which callers treat as the idempotent no-op.
func (r *QueueSessionRepository) Close(ctx context.Context, tx DBTX, id uuid.UUID, summary queue.Summary) (bool, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return false, infra.WrapRepoErr("failed to encode session summary", err)
	}
	tag, err := tx.Exec(ctx, closeSessionSQL, id, summaryJSON)
	if err != nil {
		return false, infra.WrapRepoErr("failed to close session", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *QueueSessionRepository) Delete(ctx context.Context, tx DBTX, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM queue_sessions WHERE id = $1`, id); err != nil {
		return infra.WrapRepoErr("failed to delete queue session", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*queue.Session, error) {
	var (
		id, courtID, organizerID, reservationID uuid.UUID
		start, end                              time.Time
		mode, gameFormat                        string
		maxPlayers, currentPlayers              int
		costPerGame                             int64
		visibility, status, approval            string
		summaryJSON                             []byte
		createdAt, updatedAt                    time.Time
	)
	err := row.Scan(
		&id, &courtID, &organizerID, &reservationID, &start, &end,
		&mode, &gameFormat, &maxPlayers, &currentPlayers, &costPerGame,
		&visibility, &status, &approval, &summaryJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("queue session not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan queue session", err)
	}

	var summary *queue.Summary
	if len(summaryJSON) > 0 {
		var s queue.Summary
		if err := json.Unmarshal(summaryJSON, &s); err != nil {
			return nil, infra.WrapRepoErr("corrupt session summary", err)
		}
		summary = &s
	}

	return queue.ReconstructSession(
		id, courtID, organizerID, reservationID, start, end,
		queue.Mode(mode), gameFormat, maxPlayers, currentPlayers, costPerGame,
		queue.Visibility(visibility), queue.SessionStatus(status), queue.ApprovalStatus(approval),
		summary, createdAt, updatedAt,
	), nil
}

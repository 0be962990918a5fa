package repository

import (
	"context"
	"encoding/json"

	"courtbook/internal/infra"

	"github.com/google/uuid"
)

// NotificationJob is an outbox row picked up by an external delivery worker.
// Writing the row inside the caller's transaction makes the notification
// atomic with the state change it announces.
type NotificationJob struct {
	RecipientID uuid.UUID
	Kind        string
	Payload     map[string]any
}

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const createNotificationJobSQL = `
INSERT INTO notification_jobs (id, recipient_id, kind, payload, status)
VALUES ($1, $2, $3, $4, 'queued')`

func (r *NotificationRepository) CreateJob(ctx context.Context, tx DBTX, job NotificationJob) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return infra.WrapRepoErr("failed to encode notification payload", err)
	}
	if _, err := tx.Exec(ctx, createNotificationJobSQL, uuid.New(), job.RecipientID, job.Kind, payloadJSON); err != nil {
		return infra.WrapRepoErr("failed to enqueue notification job", err, infra.KindFromPgError(err))
	}
	return nil
}

package booking

import (
	"time"

	"github.com/google/uuid"
)

// Metadata is the schemaless key-value bag persisted as jsonb. Updates are
// merged so unknown keys written by other flows are preserved.
type Metadata map[string]any

const (
	metaRecurrenceGroup   = "recurrence_group"
	metaQueueSessionID    = "queue_session_id"
	metaCancellationCause = "cancellation_cause"
	metaConfirmedByEvent  = "confirmed_by_event"
	metaFailureCode       = "payment_failure_code"
	metaFailureMessage    = "payment_failure_message"
	metaStatusHistory     = "payment_status_history"
)

func NewMetadata() Metadata {
	return Metadata{}
}

func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge overlays other onto m, keeping keys other does not mention.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (m Metadata) stringValue(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m Metadata) SetRecurrenceGroup(groupID uuid.UUID) {
	m[metaRecurrenceGroup] = groupID.String()
}

func (m Metadata) RecurrenceGroup() (uuid.UUID, bool) {
	s, ok := m.stringValue(metaRecurrenceGroup)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (m Metadata) SetQueueSessionID(sessionID uuid.UUID) {
	m[metaQueueSessionID] = sessionID.String()
}

func (m Metadata) QueueSessionID() (uuid.UUID, bool) {
	s, ok := m.stringValue(metaQueueSessionID)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (m Metadata) SetCancellationCause(cause string) {
	m[metaCancellationCause] = cause
}

func (m Metadata) CancellationCause() (string, bool) {
	return m.stringValue(metaCancellationCause)
}

// SetConfirmedByEvent records which provider event drove the confirmation,
// the breadcrumb the reconciler leaves on success.
func (m Metadata) SetConfirmedByEvent(eventID string) {
	m[metaConfirmedByEvent] = eventID
}

func (m Metadata) ConfirmedByEvent() (string, bool) {
	return m.stringValue(metaConfirmedByEvent)
}

func (m Metadata) SetPaymentFailure(code, message string) {
	m[metaFailureCode] = code
	m[metaFailureMessage] = message
}

// AppendStatusHistory records a payment-status transition with its
// timestamp. History only grows.
func (m Metadata) AppendStatusHistory(status string, at time.Time) {
	entry := map[string]any{
		"status": status,
		"at":     at.UTC().Format(time.RFC3339),
	}
	history, _ := m[metaStatusHistory].([]any)
	m[metaStatusHistory] = append(history, entry)
}

func (m Metadata) StatusHistory() []any {
	history, _ := m[metaStatusHistory].([]any)
	return history
}

package payment

import "time"

// Metadata is the payment's schemaless jsonb bag. Typed accessors below
// cover the two concerns layered on it: the processed-events idempotency
// ledger and the time-boxed processing soft lock.
type Metadata map[string]any

const (
	metaProcessedEvents     = "processed_events"
	metaProcessing          = "processing"
	metaProcessingStartedAt = "processing_started_at"
	metaProviderRef         = "provider_ref"
	metaLastSuccessEvent    = "last_success_event"
	metaLastFailureCode     = "last_failure_code"
	metaLastFailureMessage  = "last_failure_message"
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

// ProcessedEvents returns the idempotency ledger: the provider event ids
// whose side effects have already been applied.
func (m Metadata) ProcessedEvents() []string {
	raw, _ := m[metaProcessedEvents].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (m Metadata) HasProcessed(eventID string) bool {
	for _, id := range m.ProcessedEvents() {
		if id == eventID {
			return true
		}
	}
	return false
}

// MarkProcessed appends an event id to the ledger. The ledger only grows;
// an id present here must never re-trigger first-processing side effects
// (at-most-once effects under at-least-once delivery).
func (m Metadata) MarkProcessed(eventID string) {
	if m.HasProcessed(eventID) {
		return
	}
	raw, _ := m[metaProcessedEvents].([]any)
	m[metaProcessedEvents] = append(raw, eventID)
}

// Processing reports the soft lock state and when it was taken.
func (m Metadata) Processing() (bool, time.Time) {
	locked, _ := m[metaProcessing].(bool)
	if !locked {
		return false, time.Time{}
	}
	s, _ := m[metaProcessingStartedAt].(string)
	startedAt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return true, time.Time{}
	}
	return true, startedAt
}

// LockIsFresh reports whether another delivery holds a non-stale lock. A
// lock older than staleAfter is treated as abandoned by a crashed worker
// and may be taken over.
func (m Metadata) LockIsFresh(now time.Time, staleAfter time.Duration) bool {
	locked, startedAt := m.Processing()
	if !locked {
		return false
	}
	if startedAt.IsZero() {
		// Unparseable start time: treat as stale rather than wedging the payment.
		return false
	}
	return now.Sub(startedAt) < staleAfter
}

func (m Metadata) AcquireLock(now time.Time) {
	m[metaProcessing] = true
	m[metaProcessingStartedAt] = now.UTC().Format(time.RFC3339)
}

func (m Metadata) ReleaseLock() {
	m[metaProcessing] = false
	delete(m, metaProcessingStartedAt)
}

// SetProviderRef records the checkout source id so webhook events carrying
// only the source can find this payment.
func (m Metadata) SetProviderRef(ref string) {
	m[metaProviderRef] = ref
}

func (m Metadata) ProviderRef() (string, bool) {
	ref, ok := m[metaProviderRef].(string)
	return ref, ok
}

func (m Metadata) SetLastSuccess(eventID string) {
	m[metaLastSuccessEvent] = eventID
}

func (m Metadata) SetLastFailure(code, message string) {
	m[metaLastFailureCode] = code
	m[metaLastFailureMessage] = message
}

func (m Metadata) LastFailure() (code, message string) {
	code, _ = m[metaLastFailureCode].(string)
	message, _ = m[metaLastFailureMessage].(string)
	return code, message
}

package paymongo

import (
	"encoding/json"

	"courtbook/internal/pkg/errs"
)

// Webhook event types this service reacts to. Anything else is
// acknowledged and skipped.
const (
	EventSourceChargeable = "source.chargeable"
	EventPaymentPaid      = "payment.paid"
	EventPaymentFailed    = "payment.failed"
)

var ErrMalformedEvent = errs.New("malformed webhook event")

// Event is the flattened webhook payload: the provider wraps the affected
// resource in a data.attributes.data envelope; this pulls out the handful
// of fields the reconciler needs.
type Event struct {
	ID   string
	Type string

	// ResourceID is the provider id of the affected resource: a source id
	// for source.chargeable, a payment id for payment.paid/failed.
	ResourceID string

	AmountCents int64
	Currency    string

	// SourceID is the originating source for payment events, when present.
	SourceID string

	FailureCode    string
	FailureMessage string

	// Metadata echoes what checkout attached to the source; used to locate
	// the local payment when provider ids fail to match.
	Metadata map[string]string

	Raw json.RawMessage
}

type eventEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string `json:"type"`
			Data struct {
				ID         string `json:"id"`
				Attributes struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
					Source   struct {
						ID string `json:"id"`
					} `json:"source"`
					FailedCode    string            `json:"failed_code"`
					FailedMessage string            `json:"failed_message"`
					Metadata      map[string]string `json:"metadata"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. A missing event id or type is
// malformed; unknown types parse fine and are the caller's no-op.
func ParseEvent(body []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "failed to decode webhook body"), ErrMalformedEvent)
	}
	if env.Data.ID == "" || env.Data.Attributes.Type == "" {
		return nil, errs.Mark(errs.New("event id or type missing"), ErrMalformedEvent)
	}

	attrs := env.Data.Attributes.Data.Attributes
	return &Event{
		ID:             env.Data.ID,
		Type:           env.Data.Attributes.Type,
		ResourceID:     env.Data.Attributes.Data.ID,
		AmountCents:    attrs.Amount,
		Currency:       attrs.Currency,
		SourceID:       attrs.Source.ID,
		FailureCode:    attrs.FailedCode,
		FailureMessage: attrs.FailedMessage,
		Metadata:       attrs.Metadata,
		Raw:            json.RawMessage(body),
	}, nil
}

package booking

// Status is the reservation lifecycle state.
//
// confirmed is absorbing for payment-driven transitions (only the idempotent
// amount sync applies once reached); cancelled and completed are terminal.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusCompleted      Status = "completed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPendingPayment, StatusPaid, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsBlocking reports whether a reservation in this status counts against
// availability.
func (s Status) IsBlocking() bool {
	switch s {
	case StatusPending, StatusPendingPayment, StatusPaid, StatusConfirmed:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// BlockingStatuses is the set of statuses the availability engine and the
// storage exclusion constraint treat as occupying the slot.
func BlockingStatuses() []Status {
	return []Status{StatusPending, StatusPendingPayment, StatusPaid, StatusConfirmed}
}

var allowedTransitions = map[Status][]Status{
	StatusPending:        {StatusPendingPayment, StatusConfirmed, StatusCancelled},
	StatusPendingPayment: {StatusPaid, StatusConfirmed, StatusCancelled},
	StatusPaid:           {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether s may move to next. Terminal states accept
// nothing; cancellation is reachable from every live state (admin rejection).
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod selects the initial reservation status on creation.
type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodEWallet PaymentMethod = "ewallet"
)

func (m PaymentMethod) IsValid() bool {
	return m == MethodCash || m == MethodEWallet
}

// InitialStatus maps a payment method to the status a fresh reservation
// starts in: cash is settled at the venue, e-wallet awaits the webhook,
// and approval-gated reservations park in pending.
func (m PaymentMethod) InitialStatus(requiresApproval bool) Status {
	if requiresApproval {
		return StatusPending
	}
	if m == MethodCash {
		return StatusConfirmed
	}
	return StatusPendingPayment
}

// Machine-readable cancellation causes recorded in reservation metadata.
const (
	CausePaymentFailed           = "payment_failed"
	CausePaymentProcessingFailed = "payment_processing_failed"
	CausePaymentTimeout          = "payment_timeout"
	CauseAdminRejected           = "admin_rejected"
	CauseOrganizerCancelled      = "organizer_cancelled"
)

package queue

type SessionStatus string

const (
	SessionDraft           SessionStatus = "draft"
	SessionPendingApproval SessionStatus = "pending_approval"
	SessionOpen            SessionStatus = "open"
	SessionActive          SessionStatus = "active"
	SessionPaused          SessionStatus = "paused"
	SessionClosed          SessionStatus = "closed"
	SessionCancelled       SessionStatus = "cancelled"
)

func (s SessionStatus) String() string {
	return string(s)
}

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionDraft, SessionPendingApproval, SessionOpen, SessionActive, SessionPaused, SessionClosed, SessionCancelled:
		return true
	default:
		return false
	}
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionClosed || s == SessionCancelled
}

// AcceptsJoins reports whether participants may join in this status.
func (s SessionStatus) AcceptsJoins() bool {
	return s == SessionOpen || s == SessionActive
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionDraft:           {SessionPendingApproval, SessionOpen, SessionCancelled},
	SessionPendingApproval: {SessionOpen, SessionCancelled},
	SessionOpen:            {SessionActive, SessionClosed, SessionCancelled},
	SessionActive:          {SessionPaused, SessionClosed},
	SessionPaused:          {SessionActive, SessionClosed},
}

func (s SessionStatus) CanTransition(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Mode string

const (
	ModeCasual      Mode = "casual"
	ModeCompetitive Mode = "competitive"
)

func (m Mode) IsValid() bool {
	return m == ModeCasual || m == ModeCompetitive
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type ParticipantStatus string

const (
	ParticipantWaiting   ParticipantStatus = "waiting"
	ParticipantPlaying   ParticipantStatus = "playing"
	ParticipantCompleted ParticipantStatus = "completed"
	ParticipantLeft      ParticipantStatus = "left"
)

type PaymentState string

const (
	PaymentUnpaid  PaymentState = "unpaid"
	PaymentPartial PaymentState = "partial"
	PaymentPaid    PaymentState = "paid"
)

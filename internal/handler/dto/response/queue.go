package response

import (
	"time"

	"courtbook/internal/domain/queue"

	"github.com/google/uuid"
)

type QueueSessionResponse struct {
	ID             uuid.UUID       `json:"id"`
	CourtID        uuid.UUID       `json:"courtId"`
	OrganizerID    uuid.UUID       `json:"organizerId"`
	ReservationID  uuid.UUID       `json:"reservationId"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	Mode           string          `json:"mode"`
	GameFormat     string          `json:"gameFormat"`
	MaxPlayers     int             `json:"maxPlayers"`
	CurrentPlayers int             `json:"currentPlayers"`
	CostPerGame    int64           `json:"costPerGameCents"`
	Visibility     string          `json:"visibility"`
	Status         string          `json:"status"`
	ApprovalStatus string          `json:"approvalStatus"`
	Summary        *SessionSummary `json:"summary,omitempty"`
}

type SessionSummary struct {
	TotalGames       int   `json:"totalGames"`
	TotalRevenue     int64 `json:"totalRevenue"`
	ParticipantCount int   `json:"participantCount"`
	UnpaidBalances   int   `json:"unpaidBalances"`
}

func FromSession(s *queue.Session) *QueueSessionResponse {
	resp := &QueueSessionResponse{
		ID:             s.ID(),
		CourtID:        s.CourtID(),
		OrganizerID:    s.OrganizerID(),
		ReservationID:  s.ReservationID(),
		StartTime:      s.Start(),
		EndTime:        s.End(),
		Mode:           string(s.Mode()),
		GameFormat:     s.GameFormat(),
		MaxPlayers:     s.MaxPlayers(),
		CurrentPlayers: s.CurrentPlayers(),
		CostPerGame:    s.CostPerGame(),
		Visibility:     string(s.Visibility()),
		Status:         s.Status().String(),
		ApprovalStatus: string(s.Approval()),
	}
	if summary := s.Summary(); summary != nil {
		resp.Summary = FromSummary(*summary)
	}
	return resp
}

func FromSummary(s queue.Summary) *SessionSummary {
	return &SessionSummary{
		TotalGames:       s.TotalGames,
		TotalRevenue:     s.TotalRevenue,
		ParticipantCount: s.ParticipantCount,
		UnpaidBalances:   s.UnpaidBalances,
	}
}

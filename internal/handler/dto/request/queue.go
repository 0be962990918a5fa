package request

import (
	"time"

	"courtbook/internal/domain/queue"

	"github.com/google/uuid"
)

type CreateQueueSessionRequest struct {
	CourtID     uuid.UUID `json:"court_id" binding:"required"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Mode        string    `json:"mode" binding:"required,oneof=casual competitive"`
	GameFormat  string    `json:"game_format" binding:"required"`
	MaxPlayers  int       `json:"max_players" binding:"required,min=2,max=64"`
	CostPerGame int64     `json:"cost_per_game_cents" binding:"min=0"`
	Visibility  string    `json:"visibility" binding:"omitempty,oneof=public private"`
}

type RejectQueueSessionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (r CreateQueueSessionRequest) ParsedMode() queue.Mode {
	return queue.Mode(r.Mode)
}

func (r CreateQueueSessionRequest) ParsedVisibility() queue.Visibility {
	if r.Visibility == "" {
		return queue.VisibilityPublic
	}
	return queue.Visibility(r.Visibility)
}

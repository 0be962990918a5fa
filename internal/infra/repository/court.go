package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"courtbook/internal/domain/court"
	"courtbook/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CourtRepository struct {
	db DBTX
}

func NewCourtRepository(db DBTX) *CourtRepository {
	return &CourtRepository{db: db}
}

const findCourtByIDSQL = `
SELECT id, venue_id, name, hourly_rate_cents, operating_hours, requires_approval
FROM courts
WHERE id = $1`

func (r *CourtRepository) FindByID(ctx context.Context, id uuid.UUID) (*court.Court, error) {
	var (
		courtID          uuid.UUID
		venueID          uuid.UUID
		name             string
		hourlyRateCents  int64
		hoursJSON        []byte
		requiresApproval bool
	)
	err := r.db.QueryRow(ctx, findCourtByIDSQL, id).Scan(
		&courtID, &venueID, &name, &hourlyRateCents, &hoursJSON, &requiresApproval,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("court not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find court", err)
	}

	hours, err := decodeWeeklyHours(hoursJSON)
	if err != nil {
		return nil, infra.WrapRepoErr("corrupt operating hours", err)
	}

	entity, err := court.NewCourt(courtID, venueID, name, hourlyRateCents, hours, requiresApproval)
	if err != nil {
		return nil, infra.WrapRepoErr("invalid court row", err)
	}
	return entity, nil
}

// Operating hours are stored as {"monday":{"open":8,"close":22},...}.
// A weekday absent from the object means closed.
func decodeWeeklyHours(raw []byte) (court.WeeklyHours, error) {
	var byName map[string]struct {
		Open  int `json:"open"`
		Close int `json:"close"`
	}
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, err
	}

	hours := make(court.WeeklyHours, len(byName))
	for name, h := range byName {
		day, ok := weekdayByName[name]
		if !ok {
			continue
		}
		hours[day] = court.DayHours{Open: h.Open, Close: h.Close}
	}
	return hours, nil
}

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

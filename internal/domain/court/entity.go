package court

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName       = errors.New("court name cannot be empty")
	ErrInvalidHours    = errors.New("operating hours must satisfy 0 <= open < close <= 24")
	ErrNegativeRate    = errors.New("hourly rate cannot be negative")
	ErrInvalidPlatform = errors.New("platform fee rate must be between 0 and 1")
)

// DayHours is an [Open, Close) range of whole hours for one weekday.
type DayHours struct {
	Open  int
	Close int
}

func (h DayHours) Contains(hour int) bool {
	return hour >= h.Open && hour < h.Close
}

// WeeklyHours maps a weekday to its operating hours. A weekday absent from
// the map means the court is closed that day.
type WeeklyHours map[time.Weekday]DayHours

type Court struct {
	id               uuid.UUID
	venueID          uuid.UUID
	name             string
	hourlyRateCents  int64
	hours            WeeklyHours
	requiresApproval bool
}

func NewCourt(id, venueID uuid.UUID, name string, hourlyRateCents int64, hours WeeklyHours, requiresApproval bool) (*Court, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if hourlyRateCents < 0 {
		return nil, ErrNegativeRate
	}
	for _, h := range hours {
		if h.Open < 0 || h.Close > 24 || h.Open >= h.Close {
			return nil, ErrInvalidHours
		}
	}
	return &Court{
		id:               id,
		venueID:          venueID,
		name:             name,
		hourlyRateCents:  hourlyRateCents,
		hours:            hours,
		requiresApproval: requiresApproval,
	}, nil
}

func (c *Court) ID() uuid.UUID          { return c.id }
func (c *Court) VenueID() uuid.UUID     { return c.venueID }
func (c *Court) Name() string           { return c.name }
func (c *Court) HourlyRateCents() int64 { return c.hourlyRateCents }
func (c *Court) RequiresApproval() bool { return c.requiresApproval }

// HoursFor reports the operating hours for a weekday; ok is false on a
// closed day.
func (c *Court) HoursFor(day time.Weekday) (DayHours, bool) {
	h, ok := c.hours[day]
	return h, ok
}

// PriceCents computes the charge for a whole-hour duration, including the
// platform fee applied on top of the hourly rate.
func (c *Court) PriceCents(hours int, platformFeeRate float64) int64 {
	base := c.hourlyRateCents * int64(hours)
	return base + int64(float64(base)*platformFeeRate)
}

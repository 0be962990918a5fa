package request

import (
	"time"

	"courtbook/internal/domain/booking"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	CourtID         uuid.UUID `json:"court_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	RecurrenceWeeks int       `json:"recurrence_weeks" binding:"omitempty,min=1,max=52"`
	Weekdays        []string  `json:"weekdays" binding:"omitempty,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	PaymentMethod   string    `json:"payment_method" binding:"required,oneof=cash ewallet"`
	PlayerCount     int       `json:"player_count" binding:"required,min=1"`
	SuccessURL      string    `json:"success_url" binding:"omitempty,url"`
	FailedURL       string    `json:"failed_url" binding:"omitempty,url"`
}

func (r CreateBookingRequest) Method() booking.PaymentMethod {
	return booking.PaymentMethod(r.PaymentMethod)
}

func (r CreateBookingRequest) ParsedWeekdays() []time.Weekday {
	return parseWeekdays(r.Weekdays)
}

type ValidateBookingRequest struct {
	CourtID         uuid.UUID `json:"court_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	RecurrenceWeeks int       `json:"recurrence_weeks" binding:"omitempty,min=1,max=52"`
	Weekdays        []string  `json:"weekdays" binding:"omitempty,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
}

func (r ValidateBookingRequest) ParsedWeekdays() []time.Weekday {
	return parseWeekdays(r.Weekdays)
}

type RejectBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(names []string) []time.Weekday {
	out := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		if wd, ok := weekdaysByName[name]; ok {
			out = append(out, wd)
		}
	}
	return out
}

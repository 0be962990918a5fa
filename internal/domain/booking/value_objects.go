package booking

import (
	"errors"
	"fmt"
	"time"
)

type TimeSlot struct {
	start time.Time
	end   time.Time
}

func NewTimeSlot(start, end time.Time) (TimeSlot, error) {
	if !start.Before(end) {
		return TimeSlot{}, errors.New("start time must be before end time")
	}
	return TimeSlot{start: start.UTC(), end: end.UTC()}, nil
}

func (ts TimeSlot) Start() time.Time {
	return ts.start
}

func (ts TimeSlot) End() time.Time {
	return ts.end
}

func (ts TimeSlot) Duration() time.Duration {
	return ts.end.Sub(ts.start)
}

// Hours is the whole-hour duration of the slot, rounded up.
func (ts TimeSlot) Hours() int {
	return int((ts.Duration() + time.Hour - 1) / time.Hour)
}

// Overlaps implements the half-open interval test startA < endB && endA > startB.
func (ts TimeSlot) Overlaps(other TimeSlot) bool {
	return ts.start.Before(other.end) && ts.end.After(other.start)
}

func (ts TimeSlot) ToTstzrange() string {
	return fmt.Sprintf("[%s,%s)", ts.start.Format(time.RFC3339), ts.end.Format(time.RFC3339))
}

// ShiftDays returns the same hour range moved by whole days.
func (ts TimeSlot) ShiftDays(days int) TimeSlot {
	return TimeSlot{
		start: ts.start.AddDate(0, 0, days),
		end:   ts.end.AddDate(0, 0, days),
	}
}

type Money struct {
	cents int64
}

func NewMoney(cents int64) (Money, error) {
	if cents < 0 {
		return Money{}, errors.New("money cannot be negative")
	}
	return Money{cents: cents}, nil
}

func (m Money) Cents() int64 {
	return m.cents
}

func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

func (m Money) LessThan(other Money) bool {
	return m.cents < other.cents
}

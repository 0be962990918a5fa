// Package availability derives bookable hourly slots for a court from its
// weekly operating hours and existing blocking reservations, and validates
// proposed ranges including weekly recurrence.
//
// Validation here is advisory: two concurrent requests can both pass before
// either writes. The storage layer's exclusion constraint is the final
// double-booking guard.
package availability

import (
	"fmt"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/court"
	"courtbook/internal/pkg/clock"
)

type Slot struct {
	Hour       int
	Time       string // "HH:00"
	Available  bool
	PriceCents int64
}

type Engine struct {
	clock           clock.Clock
	platformFeeRate float64
}

func NewEngine(clk clock.Clock, platformFeeRate float64) *Engine {
	return &Engine{clock: clk, platformFeeRate: platformFeeRate}
}

// DaySlots produces one slot per whole operating hour of the given calendar
// day. A day absent from the court's weekly map yields an empty list, which
// callers must treat as "closed", not as an error.
//
// Past-slot rule: on the current day, slots whose hour is <= the current
// server hour are unavailable; days entirely in the past yield no available
// slots. Client-supplied "now" is never consulted.
func (e *Engine) DaySlots(c *court.Court, date time.Time, reserved []booking.TimeSlot) []Slot {
	hours, open := c.HoursFor(date.Weekday())
	if !open {
		return []Slot{}
	}

	now := e.clock.Now()
	today := sameDate(now, date)
	pastDay := truncateToDay(date).Before(truncateToDay(now))

	slots := make([]Slot, 0, hours.Close-hours.Open)
	for hour := hours.Open; hour < hours.Close; hour++ {
		available := true
		if pastDay || (today && hour <= now.Hour()) {
			available = false
		}
		if available && hourBlocked(date, hour, reserved) {
			available = false
		}
		slots = append(slots, Slot{
			Hour:       hour,
			Time:       fmt.Sprintf("%02d:00", hour),
			Available:  available,
			PriceCents: c.PriceCents(1, e.platformFeeRate),
		})
	}
	return slots
}

// hourBlocked tests slotHour ∈ [resStartHour, resEndHour) at hour
// granularity against each blocking reservation.
func hourBlocked(date time.Time, hour int, reserved []booking.TimeSlot) bool {
	slotStart := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.UTC)
	slot, err := booking.NewTimeSlot(slotStart, slotStart.Add(time.Hour))
	if err != nil {
		return true
	}
	for _, r := range reserved {
		if slot.Overlaps(r) {
			return true
		}
	}
	return false
}

// RangeResult reports why a proposed range is unavailable. WeekIndex and
// Date identify the first conflicting recurrence occurrence.
type RangeResult struct {
	Available bool
	Reason    string
	WeekIndex int
	Date      time.Time
}

func available() RangeResult {
	return RangeResult{Available: true}
}

// ReservedLookup fetches the blocking reservations for the court on the
// calendar day containing date.
type ReservedLookup func(date time.Time) ([]booking.TimeSlot, error)

// ValidateRange checks every hourly slot between start and end on every
// recurrence occurrence. The whole range is rejected on the first
// unavailable slot; partial booking of a range is never allowed.
//
// The engine does not infer day rollover: end <= start is invalid and the
// caller must shift the end to the next calendar day once before asking.
func (e *Engine) ValidateRange(
	c *court.Court,
	start, end time.Time,
	recurrenceWeeks int,
	weekdays []time.Weekday,
	lookup ReservedLookup,
) (RangeResult, error) {
	if !start.Before(end) {
		return RangeResult{Available: false, Reason: "end time must be after start time"}, nil
	}
	if recurrenceWeeks < 1 {
		recurrenceWeeks = 1
	}

	occurrences := Occurrences(start, recurrenceWeeks, weekdays)
	for _, occ := range occurrences {
		occStart := occ.Start(start)
		occEnd := occ.Start(start).Add(end.Sub(start))

		reserved, err := lookup(occStart)
		if err != nil {
			return RangeResult{}, err
		}

		if res := e.validateOccurrence(c, occStart, occEnd, reserved); !res.Available {
			res.WeekIndex = occ.WeekIndex
			res.Date = occStart
			res.Reason = fmt.Sprintf("week %d (%s): %s", occ.WeekIndex+1, occStart.Format("2006-01-02"), res.Reason)
			return res, nil
		}
	}
	return available(), nil
}

func (e *Engine) validateOccurrence(c *court.Court, start, end time.Time, reserved []booking.TimeSlot) RangeResult {
	slots := e.DaySlots(c, start, reserved)
	if len(slots) == 0 {
		return RangeResult{Available: false, Reason: "court is closed on this day"}
	}

	byHour := make(map[int]Slot, len(slots))
	for _, s := range slots {
		byHour[s.Hour] = s
	}

	endHour := end.Hour()
	if endHour == 0 && !sameDate(start, end) {
		endHour = 24 // range runs to midnight
	}
	for hour := start.Hour(); hour < endHour; hour++ {
		s, inHours := byHour[hour]
		if !inHours {
			return RangeResult{Available: false, Reason: fmt.Sprintf("%02d:00 is outside operating hours", hour)}
		}
		if !s.Available {
			return RangeResult{Available: false, Reason: fmt.Sprintf("%02d:00 is not available", hour)}
		}
	}
	return available()
}

// Occurrence is one computed recurrence date.
type Occurrence struct {
	WeekIndex int
	DayOffset int
}

// Start places the occurrence on the calendar relative to the anchor start:
// startDate + 7*weekIndex + dayOffset.
func (o Occurrence) Start(anchor time.Time) time.Time {
	return anchor.AddDate(0, 0, 7*o.WeekIndex+o.DayOffset)
}

// Occurrences expands recurrenceWeeks and the weekday set into concrete
// occurrences. An empty weekday set defaults to the anchor's weekday.
// Ordering is week-major then weekday, so the first conflict reported is
// the earliest one.
func Occurrences(anchor time.Time, recurrenceWeeks int, weekdays []time.Weekday) []Occurrence {
	if recurrenceWeeks < 1 {
		recurrenceWeeks = 1
	}
	offsets := weekdayOffsets(anchor, weekdays)

	out := make([]Occurrence, 0, recurrenceWeeks*len(offsets))
	for week := 0; week < recurrenceWeeks; week++ {
		for _, off := range offsets {
			out = append(out, Occurrence{WeekIndex: week, DayOffset: off})
		}
	}
	return out
}

// weekdayOffsets converts the selected weekdays into day offsets from the
// anchor date, within the anchor's week.
func weekdayOffsets(anchor time.Time, weekdays []time.Weekday) []int {
	if len(weekdays) == 0 {
		return []int{0}
	}
	anchorDay := anchor.Weekday()
	offsets := make([]int, 0, len(weekdays))
	for _, wd := range weekdays {
		off := (int(wd) - int(anchorDay) + 7) % 7
		offsets = append(offsets, off)
	}
	return offsets
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

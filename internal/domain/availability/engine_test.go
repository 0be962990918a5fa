//go:build unit

package availability_test

import (
	"testing"
	"time"

	"courtbook/internal/domain/availability"
	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/court"
	"courtbook/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-10 is a Tuesday.
var tuesday = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func testCourt(t *testing.T, hours court.WeeklyHours) *court.Court {
	t.Helper()
	c, err := court.NewCourt(uuid.New(), uuid.New(), "Court 1", 10000, hours, false)
	require.NoError(t, err)
	return c
}

func weekdaysOpen(open, close int) court.WeeklyHours {
	hours := court.WeeklyHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = court.DayHours{Open: open, Close: close}
	}
	return hours
}

func slotOf(t *testing.T, day time.Time, fromHour, toHour int) booking.TimeSlot {
	t.Helper()
	start := time.Date(day.Year(), day.Month(), day.Day(), fromHour, 0, 0, 0, time.UTC)
	end := time.Date(day.Year(), day.Month(), day.Day(), toHour, 0, 0, 0, time.UTC)
	if toHour == 24 {
		end = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
	slot, err := booking.NewTimeSlot(start, end)
	require.NoError(t, err)
	return slot
}

func noneReserved(time.Time) ([]booking.TimeSlot, error) { return nil, nil }

func TestEngine_DaySlots(t *testing.T) {
	clk := clock.NewMockClock(tuesday.AddDate(0, 0, -7))
	engine := availability.NewEngine(clk, 0.10)

	t.Run("closed day yields empty list", func(t *testing.T) {
		c := testCourt(t, court.WeeklyHours{time.Monday: {Open: 8, Close: 22}})
		slots := engine.DaySlots(c, tuesday, nil)
		assert.Empty(t, slots)
	})

	t.Run("one slot per operating hour with platform fee priced in", func(t *testing.T) {
		c := testCourt(t, weekdaysOpen(8, 12))
		slots := engine.DaySlots(c, tuesday, nil)

		require.Len(t, slots, 4)
		assert.Equal(t, 8, slots[0].Hour)
		assert.Equal(t, "08:00", slots[0].Time)
		assert.Equal(t, int64(11000), slots[0].PriceCents)
		for _, s := range slots {
			assert.True(t, s.Available)
		}
	})

	t.Run("blocking reservation masks its hours", func(t *testing.T) {
		c := testCourt(t, weekdaysOpen(8, 12))
		reserved := []booking.TimeSlot{slotOf(t, tuesday, 9, 11)}
		slots := engine.DaySlots(c, tuesday, reserved)

		require.Len(t, slots, 4)
		assert.True(t, slots[0].Available)  // 08:00
		assert.False(t, slots[1].Available) // 09:00
		assert.False(t, slots[2].Available) // 10:00
		assert.True(t, slots[3].Available)  // 11:00
	})

	t.Run("past days have no available slots", func(t *testing.T) {
		futureClk := clock.NewMockClock(tuesday.AddDate(0, 0, 3))
		e := availability.NewEngine(futureClk, 0.10)
		c := testCourt(t, weekdaysOpen(8, 12))

		for _, s := range e.DaySlots(c, tuesday, nil) {
			assert.False(t, s.Available)
		}
	})

	t.Run("today masks hours at or before the current hour", func(t *testing.T) {
		nowClk := clock.NewMockClock(time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC))
		e := availability.NewEngine(nowClk, 0.10)
		c := testCourt(t, weekdaysOpen(8, 14))

		slots := e.DaySlots(c, tuesday, nil)
		byHour := map[int]bool{}
		for _, s := range slots {
			byHour[s.Hour] = s.Available
		}
		assert.False(t, byHour[9])
		assert.False(t, byHour[10]) // current hour counts as past
		assert.True(t, byHour[11])
	})
}

func TestEngine_ValidateRange(t *testing.T) {
	clk := clock.NewMockClock(tuesday.AddDate(0, 0, -7))
	engine := availability.NewEngine(clk, 0.10)
	c := testCourt(t, weekdaysOpen(8, 22))

	at := func(hour int) time.Time {
		return time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC)
	}

	t.Run("free range passes", func(t *testing.T) {
		res, err := engine.ValidateRange(c, at(14), at(16), 1, nil, noneReserved)
		require.NoError(t, err)
		assert.True(t, res.Available)
	})

	t.Run("end not after start is invalid", func(t *testing.T) {
		res, err := engine.ValidateRange(c, at(14), at(14), 1, nil, noneReserved)
		require.NoError(t, err)
		assert.False(t, res.Available)
	})

	t.Run("range touching a reserved hour is rejected", func(t *testing.T) {
		lookup := func(time.Time) ([]booking.TimeSlot, error) {
			return []booking.TimeSlot{slotOf(t, tuesday, 15, 16)}, nil
		}
		res, err := engine.ValidateRange(c, at(14), at(17), 1, nil, lookup)
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Contains(t, res.Reason, "15:00")
	})

	t.Run("range outside operating hours is rejected", func(t *testing.T) {
		res, err := engine.ValidateRange(c, at(21), time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC), 1, nil, noneReserved)
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Contains(t, res.Reason, "outside operating hours")
	})

	t.Run("recurrence is all-or-nothing on the first conflict", func(t *testing.T) {
		week2 := tuesday.AddDate(0, 0, 14)
		lookup := func(date time.Time) ([]booking.TimeSlot, error) {
			if date.Year() == week2.Year() && date.YearDay() == week2.YearDay() {
				return []booking.TimeSlot{slotOf(t, week2, 14, 15)}, nil
			}
			return nil, nil
		}

		res, err := engine.ValidateRange(c, at(14), at(16), 4, nil, lookup)
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, 2, res.WeekIndex)
		assert.Contains(t, res.Reason, "week 3")
	})

	t.Run("midnight-ending range checks up to the closing hour", func(t *testing.T) {
		lateCourt := testCourt(t, weekdaysOpen(8, 24))
		end := tuesday.AddDate(0, 0, 1) // midnight
		res, err := engine.ValidateRange(lateCourt, at(22), end, 1, nil, noneReserved)
		require.NoError(t, err)
		assert.True(t, res.Available)
	})
}

func TestOccurrences(t *testing.T) {
	t.Run("empty weekday set defaults to the anchor weekday", func(t *testing.T) {
		occ := availability.Occurrences(tuesday, 3, nil)
		require.Len(t, occ, 3)
		for i, o := range occ {
			assert.Equal(t, i, o.WeekIndex)
			assert.Equal(t, 0, o.DayOffset)
		}
	})

	t.Run("weekday offsets stay within the anchor week", func(t *testing.T) {
		// Anchor Tuesday; Thursday is +2, Monday wraps to +6.
		occ := availability.Occurrences(tuesday, 1, []time.Weekday{time.Thursday, time.Monday})
		require.Len(t, occ, 2)
		assert.Equal(t, 2, occ[0].DayOffset)
		assert.Equal(t, 6, occ[1].DayOffset)
	})

	t.Run("start places week-major occurrences on the calendar", func(t *testing.T) {
		occ := availability.Occurrence{WeekIndex: 2, DayOffset: 3}
		assert.Equal(t, tuesday.AddDate(0, 0, 17), occ.Start(tuesday))
	})
}

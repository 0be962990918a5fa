package usecase

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/domain/availability"
	"courtbook/internal/domain/booking"
	"courtbook/internal/infra"
	"courtbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrCourtNotFound = errors.New("court not found")
	ErrInvalidDate   = errors.New("invalid date")
)

type AvailabilityUseCase interface {
	GetDaySlots(ctx context.Context, courtID uuid.UUID, date time.Time) ([]availability.Slot, error)
	ValidateRange(ctx context.Context, courtID uuid.UUID, start, end time.Time, recurrenceWeeks int, weekdays []time.Weekday) (availability.RangeResult, error)
}

type availabilityUseCaseImpl struct {
	engine      *availability.Engine
	courtRepo   CourtRepository
	bookingRepo BookingRepository
}

func NewAvailabilityUseCase(
	engine *availability.Engine,
	courtRepo CourtRepository,
	bookingRepo BookingRepository,
) AvailabilityUseCase {
	return &availabilityUseCaseImpl{
		engine:      engine,
		courtRepo:   courtRepo,
		bookingRepo: bookingRepo,
	}
}

// GetDaySlots returns the per-hour availability for one calendar day. A
// closed day yields an empty list, not an error.
func (u *availabilityUseCaseImpl) GetDaySlots(ctx context.Context, courtID uuid.UUID, date time.Time) ([]availability.Slot, error) {
	courtEntity, err := u.courtRepo.FindByID(ctx, courtID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, errs.Wrap(err, "failed to find court")
	}

	reserved, err := u.reservedOn(ctx, courtID, date)
	if err != nil {
		return nil, err
	}
	return u.engine.DaySlots(courtEntity, date, reserved), nil
}

// ValidateRange runs the advisory range check, expanding recurrence. The
// storage exclusion constraint remains the final guard at write time.
func (u *availabilityUseCaseImpl) ValidateRange(
	ctx context.Context,
	courtID uuid.UUID,
	start, end time.Time,
	recurrenceWeeks int,
	weekdays []time.Weekday,
) (availability.RangeResult, error) {
	courtEntity, err := u.courtRepo.FindByID(ctx, courtID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return availability.RangeResult{}, ErrCourtNotFound
		}
		return availability.RangeResult{}, errs.Wrap(err, "failed to find court")
	}

	lookup := func(date time.Time) ([]booking.TimeSlot, error) {
		return u.reservedOn(ctx, courtID, date)
	}
	return u.engine.ValidateRange(courtEntity, start, end, recurrenceWeeks, weekdays, lookup)
}

func (u *availabilityUseCaseImpl) reservedOn(ctx context.Context, courtID uuid.UUID, date time.Time) ([]booking.TimeSlot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	reserved, err := u.bookingRepo.FindBlockingSlots(ctx, courtID, dayStart, dayEnd)
	if err != nil {
		return nil, errs.Wrap(err, "failed to load blocking reservations")
	}
	return reserved, nil
}

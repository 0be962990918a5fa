package response

import (
	"time"

	"courtbook/internal/domain/availability"
	"courtbook/internal/domain/booking"

	"github.com/google/uuid"
)

type SlotResponse struct {
	Time       string `json:"time"`
	Available  bool   `json:"available"`
	PriceCents int64  `json:"price"`
}

func FromSlots(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			Time:       s.Time,
			Available:  s.Available,
			PriceCents: s.PriceCents,
		})
	}
	return out
}

type ValidateBookingResponse struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type BookingResponse struct {
	ID           uuid.UUID  `json:"id"`
	CourtID      uuid.UUID  `json:"courtId"`
	UserID       uuid.UUID  `json:"userId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      time.Time  `json:"endTime"`
	Status       string     `json:"status"`
	TotalCents   int64      `json:"totalCents"`
	PaidCents    int64      `json:"paidCents"`
	PlayerCount  int        `json:"playerCount"`
	CancelReason *string    `json:"cancelReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
}

func FromReservation(res *booking.Reservation) *BookingResponse {
	return &BookingResponse{
		ID:           res.ID(),
		CourtID:      res.CourtID(),
		UserID:       res.UserID(),
		StartTime:    res.Slot().Start(),
		EndTime:      res.Slot().End(),
		Status:       res.Status().String(),
		TotalCents:   res.TotalCents(),
		PaidCents:    res.PaidCents(),
		PlayerCount:  res.PlayerCount(),
		CancelReason: res.CancelReason(),
		CreatedAt:    res.CreatedAt(),
		CancelledAt:  res.CancelledAt(),
	}
}

func FromReservations(list []*booking.Reservation) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(list))
	for _, res := range list {
		out = append(out, FromReservation(res))
	}
	return out
}

type CreateBookingResponse struct {
	Reservations []*BookingResponse `json:"reservations"`
	PaymentID    *uuid.UUID         `json:"paymentId,omitempty"`
	CheckoutURL  string             `json:"checkoutUrl,omitempty"`
}

package api

import (
	"errors"
	"net/http"

	"courtbook/internal/handler/dto/request"
	"courtbook/internal/handler/dto/response"
	"courtbook/internal/handler/middleware"
	"courtbook/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	bookingUseCase usecase.BookingUseCase
}

func NewBookingHandler(bookingUseCase usecase.BookingUseCase) *BookingHandler {
	return &BookingHandler{bookingUseCase: bookingUseCase}
}

// @Summary Create a booking
// @Description Creates one reservation per recurrence occurrence, all-or-nothing. E-wallet bookings return a checkout URL.
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body request.CreateBookingRequest true "Booking details"
// @Success 201 {object} response.CreateBookingResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Security BearerAuth
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req request.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	result, err := h.bookingUseCase.CreateBooking(c.Request.Context(), usecase.CreateBookingInput{
		CourtID:         req.CourtID,
		UserID:          userID,
		Start:           req.StartTime,
		End:             req.EndTime,
		RecurrenceWeeks: req.RecurrenceWeeks,
		Weekdays:        req.ParsedWeekdays(),
		Method:          req.Method(),
		PlayerCount:     req.PlayerCount,
		SuccessURL:      req.SuccessURL,
		FailedURL:       req.FailedURL,
	})
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	resp := response.CreateBookingResponse{
		Reservations: response.FromReservations(result.Reservations),
		CheckoutURL:  result.CheckoutURL,
	}
	if result.PaymentID != uuid.Nil {
		id := result.PaymentID
		resp.PaymentID = &id
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a booking
// @Tags bookings
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.BookingResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation id"})
		return
	}

	res, err := h.bookingUseCase.GetBooking(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, response.FromReservation(res))
}

// @Summary List my bookings
// @Tags bookings
// @Produce json
// @Success 200 {array} response.BookingResponse
// @Security BearerAuth
// @Router /bookings [get]
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	list, err := h.bookingUseCase.GetUserBookings(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, response.FromReservations(list))
}

// @Summary Reject a booking
// @Description Admin override: cancels the reservation with a reason surfaced to the requester.
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param request body request.RejectBookingRequest true "Rejection reason"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /bookings/{id}/reject [post]
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation id"})
		return
	}

	var req request.RejectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection reason is required"})
		return
	}

	if err := h.bookingUseCase.RejectBooking(c.Request.Context(), id, req.Reason); err != nil {
		switch {
		case errors.Is(err, usecase.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		case errors.Is(err, usecase.ErrRejectReasonRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection reason is required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *BookingHandler) respondBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrCourtNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Court not found"})
	case errors.Is(err, usecase.ErrInvalidPaymentMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment method"})
	case errors.Is(err, usecase.ErrRangeUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "Requested range is not available"})
	case errors.Is(err, usecase.ErrBookingConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Time slot was booked by someone else"})
	case errors.Is(err, usecase.ErrPaymentProcessingFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment processing failed, booking cancelled"})
	case errors.Is(err, usecase.ErrDomainValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

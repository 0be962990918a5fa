package api

import (
	"errors"
	"net/http"
	"time"

	"courtbook/internal/handler/dto/request"
	"courtbook/internal/handler/dto/response"
	"courtbook/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AvailabilityHandler struct {
	availabilityUseCase usecase.AvailabilityUseCase
}

func NewAvailabilityHandler(availabilityUseCase usecase.AvailabilityUseCase) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityUseCase: availabilityUseCase}
}

// @Summary Court availability for a day
// @Description Hourly slots with availability and price. A closed day returns an empty list.
// @Tags availability
// @Produce json
// @Param id path string true "Court ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {array} response.SlotResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /courts/{id}/availability [get]
func (h *AvailabilityHandler) GetDaySlots(c *gin.Context) {
	courtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid court id"})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", c.Query("date"), time.UTC)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		return
	}

	slots, err := h.availabilityUseCase.GetDaySlots(c.Request.Context(), courtID, date)
	if err != nil {
		if errors.Is(err, usecase.ErrCourtNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Court not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, response.FromSlots(slots))
}

// @Summary Validate a booking range
// @Description Checks the whole range including recurrence; rejects on the first conflict.
// @Tags availability
// @Accept json
// @Produce json
// @Param request body request.ValidateBookingRequest true "Range to validate"
// @Success 200 {object} response.ValidateBookingResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /bookings/validate [post]
func (h *AvailabilityHandler) ValidateBooking(c *gin.Context) {
	var req request.ValidateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result, err := h.availabilityUseCase.ValidateRange(
		c.Request.Context(), req.CourtID, req.StartTime, req.EndTime,
		req.RecurrenceWeeks, req.ParsedWeekdays(),
	)
	if err != nil {
		if errors.Is(err, usecase.ErrCourtNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Court not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, response.ValidateBookingResponse{
		Available: result.Available,
		Error:     result.Reason,
	})
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"courtbook/internal/domain/queue"
	"courtbook/internal/handler/dto/request"
	"courtbook/internal/handler/dto/response"
	"courtbook/internal/handler/middleware"
	"courtbook/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type QueueHandler struct {
	queueUseCase usecase.QueueUseCase
}

func NewQueueHandler(queueUseCase usecase.QueueUseCase) *QueueHandler {
	return &QueueHandler{queueUseCase: queueUseCase}
}

// @Summary Create a queue session
// @Description Books the underlying court reservation and opens the session. Courts requiring approval start as pending_approval.
// @Tags queue
// @Accept json
// @Produce json
// @Param request body request.CreateQueueSessionRequest true "Session details"
// @Success 201 {object} response.QueueSessionResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions [post]
func (h *QueueHandler) CreateSession(c *gin.Context) {
	var req request.CreateQueueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	session, err := h.queueUseCase.CreateSession(c.Request.Context(), usecase.CreateSessionInput{
		CourtID:     req.CourtID,
		OrganizerID: userID,
		Start:       req.StartTime,
		End:         req.EndTime,
		Mode:        req.ParsedMode(),
		GameFormat:  req.GameFormat,
		MaxPlayers:  req.MaxPlayers,
		CostPerGame: req.CostPerGame,
		Visibility:  req.ParsedVisibility(),
	})
	if err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.FromSession(session))
}

// @Summary Get a queue session
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.QueueSessionResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id} [get]
func (h *QueueHandler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.queueUseCase.GetSession(c.Request.Context(), id)
	if err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromSession(session))
}

// @Summary Approve a pending session
// @Description Venue admin approval: opens the session and moves the linked reservation to pending_payment.
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.QueueSessionResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/approve [post]
func (h *QueueHandler) ApproveSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.queueUseCase.ApproveSession(c.Request.Context(), id)
	if err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromSession(session))
}

// @Summary Reject a pending session
// @Description Venue admin rejection: cancels the session and releases the held reservation. A reason is required.
// @Tags queue
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.RejectQueueSessionRequest true "Rejection reason"
// @Success 200 {object} response.QueueSessionResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/reject [post]
func (h *QueueHandler) RejectSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req request.RejectQueueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection reason is required"})
		return
	}

	session, err := h.queueUseCase.RejectSession(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromSession(session))
}

// @Summary Cancel a queue session
// @Description Organizer withdrawal of a session nobody has joined; releases the held reservation.
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/cancel [post]
func (h *QueueHandler) CancelSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := h.queueUseCase.CancelSession(c.Request.Context(), id, userID); err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// @Summary Join a queue session
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/join [post]
func (h *QueueHandler) JoinSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := h.queueUseCase.JoinSession(c.Request.Context(), id, userID); err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

// @Summary Leave a queue session
// @Description A participant with an unpaid balance cannot leave on their own.
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/leave [post]
func (h *QueueHandler) LeaveSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := h.queueUseCase.LeaveSession(c.Request.Context(), id, userID); err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// @Summary Remove a participant
// @Description Organizer override of the unpaid-balance guard.
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Param userId path string true "Participant user ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/participants/{userId}/remove [post]
func (h *QueueHandler) RemoveParticipant(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	organizerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	if err := h.queueUseCase.ForceRemoveParticipant(c.Request.Context(), id, organizerID, targetID); err != nil {
		h.respondQueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// @Summary Close a queue session
// @Description Computes and persists the terminal summary. Closing again returns the stored summary.
// @Tags queue
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.SessionSummary
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /queue-sessions/{id}/close [post]
func (h *QueueHandler) CloseSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	summary, err := h.queueUseCase.CloseSession(c.Request.Context(), id, userID)
	if err != nil {
		h.respondQueueError(c, err)
		return
	}
	if summary == nil {
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
		return
	}
	c.JSON(http.StatusOK, response.FromSummary(*summary))
}

func (h *QueueHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *QueueHandler) respondQueueError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitedError
	switch {
	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, usecase.ErrCourtNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Court not found"})
	case errors.Is(err, queue.ErrParticipantAbsent):
		c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found in session"})
	case errors.Is(err, usecase.ErrNotOrganizer):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the organizer may perform this action"})
	case errors.Is(err, usecase.ErrNotApprovable):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not awaiting approval"})
	case errors.Is(err, usecase.ErrRangeUnavailable), errors.Is(err, usecase.ErrBookingConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Court is not available for this interval"})
	case errors.Is(err, queue.ErrSessionFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is full"})
	case errors.Is(err, queue.ErrSessionNotJoinable):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not accepting participants"})
	case errors.Is(err, queue.ErrAlreadyJoined):
		c.JSON(http.StatusConflict, gin.H{"error": "Already joined"})
	case errors.Is(err, queue.ErrCooldownActive):
		c.JSON(http.StatusConflict, gin.H{"error": "Rejoin cooldown is active"})
	case errors.Is(err, queue.ErrAlreadyLeft):
		c.JSON(http.StatusConflict, gin.H{"error": "Participant has already left"})
	case errors.Is(err, queue.ErrUnpaidBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "Participant has an unpaid balance"})
	case errors.Is(err, queue.ErrCancelWithPlayers):
		c.JSON(http.StatusConflict, gin.H{"error": "Session has active participants"})
	case errors.Is(err, queue.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Session cannot be cancelled in its current state"})
	case errors.Is(err, usecase.ErrRejectReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection reason is required"})
	case errors.Is(err, usecase.ErrDomainValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

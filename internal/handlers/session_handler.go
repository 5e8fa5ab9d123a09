package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"simulation-service/internal/models"
	"simulation-service/internal/service"
)

type SessionHandler struct {
	Service *service.SessionService
}

func NewSessionHandler(s *service.SessionService) *SessionHandler {
	return &SessionHandler{Service: s}
}

// StartSession creates a new attempt against a published case.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req struct {
		CaseID string `json:"case_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.Service.StartSession(c.Request.Context(), userID, req.CaseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// SubmitStep records one answered step and returns the next step or the
// completion summary.
func (h *SessionHandler) SubmitStep(c *gin.Context) {
	sessionID := c.Param("id")
	var req struct {
		StepID           string `json:"step_id" binding:"required"`
		SelectedOptionID string `json:"selected_option_id" binding:"required"`
		TimeSpentSeconds int    `json:"time_spent_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission format", "details": err.Error()})
		return
	}

	result, err := h.Service.SubmitStep(c.Request.Context(), sessionID, req.StepID, req.SelectedOptionID, req.TimeSpentSeconds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) PauseSession(c *gin.Context) {
	h.transition(c, h.Service.PauseSession)
}

func (h *SessionHandler) ResumeSession(c *gin.Context) {
	h.transition(c, h.Service.ResumeSession)
}

func (h *SessionHandler) AbandonSession(c *gin.Context) {
	h.transition(c, h.Service.AbandonSession)
}

// GetSession returns the caller's durable session record.
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.Service.GetSession(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetProgress serves the lightweight progress snapshot.
func (h *SessionHandler) GetProgress(c *gin.Context) {
	entry, err := h.Service.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// AttachFeedback stores post-hoc feedback on a finished session.
func (h *SessionHandler) AttachFeedback(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feedback format", "details": err.Error()})
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.Service.AttachFeedback(c.Request.Context(), c.Param("id"), userID, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) transition(c *gin.Context, op func(ctx context.Context, sessionID, userID string) (*models.Session, error)) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := op(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// requireUser reads the identity set by the gateway's auth middleware.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID is required"})
		return "", false
	}
	return userID, true
}

// respondError maps engine error kinds to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaseUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "Case is not available"})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, service.ErrSessionTerminated):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is already finished"})
	case errors.Is(err, service.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not in an eligible state"})
	case errors.Is(err, service.ErrUnknownStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Step does not exist in this case"})
	case errors.Is(err, service.ErrUnknownOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Option does not exist on this step"})
	case errors.Is(err, service.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent update, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"simulation-service/internal/service"
)

type StatsHandler struct {
	Service *service.StatsService
}

func NewStatsHandler(s *service.StatsService) *StatsHandler {
	return &StatsHandler{Service: s}
}

// GetCaseStats returns the running aggregate for a case.
func (h *StatsHandler) GetCaseStats(c *gin.Context) {
	stats, err := h.Service.CaseStats(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RecomputeCaseStats rebuilds a case aggregate from the session history.
// Reconciliation endpoint for aggregates that missed a completion update.
func (h *StatsHandler) RecomputeCaseStats(c *gin.Context) {
	stats, err := h.Service.RecomputeCaseStats(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetUserPerformance returns the caller's breakdown for a timeframe
// (week|month|quarter|year|all, defaulting to all).
func (h *StatsHandler) GetUserPerformance(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	perf, err := h.Service.UserPerformance(c.Request.Context(), userID, c.Query("timeframe"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

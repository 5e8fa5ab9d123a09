package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"simulation-service/internal/repository"
)

// CaseHandler covers the one case-side operation the session engine depends
// on: publishing, which is where graph validation happens. Authoring and
// editing live elsewhere.
type CaseHandler struct {
	Repo *repository.CaseRepository
}

func NewCaseHandler(repo *repository.CaseRepository) *CaseHandler {
	return &CaseHandler{Repo: repo}
}

// PublishCase validates the stored graph and flips it to published. An
// invalid graph (unknown or cyclic prerequisites, inconsistent max score) is
// rejected here so that sessions never see one.
func (h *CaseHandler) PublishCase(c *gin.Context) {
	graph, err := h.Repo.FindByID(c.Request.Context(), c.Param("caseId"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
		return
	}

	if err := h.Repo.Publish(c.Request.Context(), graph); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Case graph is invalid", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Case published"})
}

package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fincoach-backend/internal/service"
)

type ProgressController struct {
	ProgressService service.ProgressService
}

func NewProgressController(progressService service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// StartModule handles POST /learning/modules/:id/start
func (pc *ProgressController) StartModule(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}
	moduleID, ok := moduleIDParam(c)
	if !ok {
		return
	}

	progress, err := pc.ProgressService.StartModule(uid, moduleID)
	if err != nil {
		writeServiceError(c, err, "Failed to start module")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// UpdateProgress handles PUT /learning/modules/:id/progress
func (pc *ProgressController) UpdateProgress(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}
	moduleID, ok := moduleIDParam(c)
	if !ok {
		return
	}

	var req struct {
		ProgressPercentage int `json:"progress_percentage"`
		TimeSpentMinutes   int `json:"time_spent_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	progress, err := pc.ProgressService.UpdateProgress(uid, moduleID, req.ProgressPercentage, req.TimeSpentMinutes)
	if err != nil {
		writeServiceError(c, err, "Failed to update progress")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// CompleteModule handles POST /learning/modules/:id/complete
func (pc *ProgressController) CompleteModule(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}
	moduleID, ok := moduleIDParam(c)
	if !ok {
		return
	}

	progress, err := pc.ProgressService.CompleteModule(uid, moduleID)
	if err != nil {
		writeServiceError(c, err, "Failed to complete module")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Module completed successfully",
		"progress": progress,
	})
}

// SubmitQuiz handles POST /learning/modules/:id/quiz
func (pc *ProgressController) SubmitQuiz(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}
	moduleID, ok := moduleIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Answers        []service.QuizAnswer `json:"answers" binding:"required"`
		IdempotencyKey string               `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	submission, err := pc.ProgressService.SubmitQuiz(uid, moduleID, req.Answers, req.IdempotencyKey)
	if err != nil {
		writeServiceError(c, err, "Failed to submit quiz")
		return
	}
	c.JSON(http.StatusOK, submission)
}

// writeServiceError maps service-layer sentinel errors onto HTTP
// statuses.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

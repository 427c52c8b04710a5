package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fincoach-backend/internal/service"
)

type LearningController struct {
	SchedulerService service.SchedulerService
	QueueService     service.QueueService
	ProgressService  service.ProgressService
}

func NewLearningController(
	schedulerService service.SchedulerService,
	queueService service.QueueService,
	progressService service.ProgressService,
) *LearningController {
	return &LearningController{
		SchedulerService: schedulerService,
		QueueService:     queueService,
		ProgressService:  progressService,
	}
}

// Generate handles POST /learning/generate
func (lc *LearningController) Generate(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}

	var req struct {
		ForceGenerate    bool `json:"force_generate"`
		DesiredQueueSize int  `json:"desired_queue_size"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}
	}

	result, err := lc.SchedulerService.TriggerGeneration(c.Request.Context(), uid, req.ForceGenerate, req.DesiredQueueSize)
	if err != nil {
		writeServiceError(c, err, "Failed to run generation")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetModules handles GET /learning/modules
func (lc *LearningController) GetModules(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}

	modules, err := lc.ProgressService.GetActiveModules(uid)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve modules")
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

// GetQueue handles GET /learning/queue
func (lc *LearningController) GetQueue(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}

	depth, err := lc.QueueService.GetQueueDepth(uid)
	if err != nil {
		writeServiceError(c, err, "Failed to read queue")
		return
	}
	c.JSON(http.StatusOK, depth)
}

// GetProfile handles GET /learning/profile
func (lc *LearningController) GetProfile(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}

	overview, err := lc.ProgressService.GetOverview(uid)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// authedUserID pulls the authenticated user out of the gin context. It
// writes the error response itself so handlers can bail with a bare
// return.
func authedUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return 0, false
	}
	uid, ok := userID.(uint)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uid, true
}

func moduleIDParam(c *gin.Context) (uint, bool) {
	idParam := c.Param("id")
	idUint, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid module ID"})
		return 0, false
	}
	return uint(idUint), true
}

package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fincoach-backend/internal/service"
)

// RegisterRoutes registers all route groups and their endpoints.
func RegisterRoutes(r *gin.Engine,
	schedulerService service.SchedulerService,
	queueService service.QueueService,
	progressService service.ProgressService,
	reportService service.ReportService,
) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	learningCtrl := NewLearningController(schedulerService, queueService, progressService)
	progressCtrl := NewProgressController(progressService)
	reportCtrl := NewReportController(reportService)

	learningRoutes := r.Group("/learning")
	{
		learningRoutes.POST("/generate", learningCtrl.Generate)
		learningRoutes.GET("/modules", learningCtrl.GetModules)
		learningRoutes.GET("/queue", learningCtrl.GetQueue)
		learningRoutes.GET("/profile", learningCtrl.GetProfile)
		learningRoutes.GET("/report", reportCtrl.DownloadReport)

		learningRoutes.POST("/modules/:id/start", progressCtrl.StartModule)
		learningRoutes.PUT("/modules/:id/progress", progressCtrl.UpdateProgress)
		learningRoutes.POST("/modules/:id/complete", progressCtrl.CompleteModule)
		learningRoutes.POST("/modules/:id/quiz", progressCtrl.SubmitQuiz)
	}
}

package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fincoach-backend/internal/service"
)

type ReportController struct {
	ReportService service.ReportService
}

func NewReportController(reportService service.ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// DownloadReport handles GET /learning/report
func (rc *ReportController) DownloadReport(c *gin.Context) {
	uid, ok := authedUserID(c)
	if !ok {
		return
	}

	buf, err := rc.ReportService.BuildReport(uid)
	if err != nil {
		writeServiceError(c, err, "Failed to generate report")
		return
	}

	filename := fmt.Sprintf("learning-report-%s.pdf", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

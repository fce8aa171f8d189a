package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

// Handlers bundles the API handlers mounted under the API prefix.
type Handlers struct {
	Allocation *AllocationHandler
	CSV        *CSVHandler
	Notice     *NoticeHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts the API. auth, when non-empty, guards every route except downloads,
// which carry their own signed token.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth ...gin.HandlerFunc) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.GET("/allocations/files/:token", h.Allocation.Download)

	protected := api.Group("")
	protected.Use(auth...)
	protected.POST("/validate-csv", h.CSV.ValidateCSV)
	protected.POST("/allocate", h.Allocation.Allocate)
	protected.POST("/allocations/jobs", h.Allocation.CreateJob)
	protected.GET("/allocations/jobs/:id", h.Allocation.JobStatus)
	protected.POST("/send-email", h.Notice.SendEmail)
	protected.GET("/metrics/summary", h.Metrics.Summary)
}

// AllocationRoles are the roles allowed to run allocations when auth is enabled.
var AllocationRoles = []models.UserRole{models.RoleAdmin, models.RoleExamCell}

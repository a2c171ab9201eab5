// Package server builds the gin engine and owns the route table.
package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/http/handlers"
	"github.com/learnsphere/learnsphere-backend/internal/http/middleware"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log               *logger.Logger
	AuthMiddleware    *middleware.AuthMiddleware
	EnrollmentHandler *handlers.EnrollmentHandler
	TrackerHandler    *handlers.TrackerHandler
	AssessmentHandler *handlers.AssessmentHandler
	SubmissionHandler *handlers.SubmissionHandler
	ActivityHandler   *handlers.ActivityHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware("learnsphere-backend"))
	router.Use(middleware.RequestLogger(cfg.Log))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/webhooks/assessment-results", cfg.AssessmentHandler.ResultsWebhook)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Enrollments
	api.POST("/enrollments", cfg.EnrollmentHandler.Enroll)
	api.GET("/enrollments", cfg.EnrollmentHandler.ListMine)
	api.DELETE("/enrollments", cfg.EnrollmentHandler.Unenroll)

	// Trackers
	api.POST("/trackers", cfg.TrackerHandler.Start)
	api.GET("/trackers/:id", cfg.TrackerHandler.Get)
	api.GET("/trackers/:id/children", cfg.TrackerHandler.Children)
	api.POST("/trackers/:id/video-progress", cfg.TrackerHandler.VideoProgress)
	api.POST("/trackers/:id/complete", cfg.TrackerHandler.Complete)
	api.POST("/trackers/:id/lab", cfg.TrackerHandler.StartLab)

	// Assessments
	api.POST("/assessments/start", cfg.AssessmentHandler.Start)
	api.POST("/trackers/:id/pull-results", cfg.AssessmentHandler.PullResults)

	// Submissions
	api.POST("/trackers/:id/submissions", cfg.SubmissionHandler.Submit)
	api.GET("/trackers/:id/submissions", cfg.SubmissionHandler.List)
	api.GET("/submissions/:id/file-url", cfg.SubmissionHandler.FileURL)

	// Activity feeds
	api.GET("/activity/leaderboard", cfg.ActivityHandler.ListLeaderboard)
	api.GET("/activity/badges", cfg.ActivityHandler.ListBadges)
	api.GET("/activity/calendar", cfg.ActivityHandler.ListCalendar)

	// Admin
	admin := api.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAdmin())
	admin.PATCH("/enrollments/:id/decide", cfg.EnrollmentHandler.Decide)
	admin.POST("/enrollments/bulk-enroll", cfg.EnrollmentHandler.BulkUpload(types.JobTypeBulkEnroll))
	admin.POST("/enrollments/bulk-unenroll", cfg.EnrollmentHandler.BulkUpload(types.JobTypeBulkUnenroll))
	admin.POST("/trackers/:id/grant-reattempt", cfg.AssessmentHandler.GrantReattempt)
	admin.PATCH("/submissions/:id/review", cfg.SubmissionHandler.Review)

	return router
}

package app

import (
	"github.com/gin-gonic/gin"

	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/server"
)

func wireRouter(log *logger.Logger, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:               log,
		AuthMiddleware:    middlewareset.Auth,
		EnrollmentHandler: handlerset.Enrollment,
		TrackerHandler:    handlerset.Tracker,
		AssessmentHandler: handlerset.Assessment,
		SubmissionHandler: handlerset.Submission,
		ActivityHandler:   handlerset.Activity,
	})
}

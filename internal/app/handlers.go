package app

import (
	"github.com/learnsphere/learnsphere-backend/internal/http/handlers"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Handlers struct {
	Enrollment *handlers.EnrollmentHandler
	Tracker    *handlers.TrackerHandler
	Assessment *handlers.AssessmentHandler
	Submission *handlers.SubmissionHandler
	Activity   *handlers.ActivityHandler
}

func wireHandlers(log *logger.Logger, repos Repos, services Services, clients Clients) Handlers {
	return Handlers{
		Enrollment: handlers.NewEnrollmentHandler(log, services.Enrollments, clients.Bucket, services.Enqueuer),
		Tracker:    handlers.NewTrackerHandler(log, services.Learning, services.Aggregator, services.Enqueuer),
		Assessment: handlers.NewAssessmentHandler(log, services.Attempts),
		Submission: handlers.NewSubmissionHandler(log, services.Submissions),
		Activity:   handlers.NewActivityHandler(log, repos.Leaderboard, repos.BadgeActs, repos.Calendar),
	}
}

package app

import (
	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	calendarrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/calendar"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	gamrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/gamification"
	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Repos struct {
	Users          userrepo.UserRepo
	TenantSettings userrepo.TenantSettingRepo
	Catalog        catalogrepo.CatalogRepo
	Catalogues     catalogrepo.CatalogueRepo
	Trackers       trackerrepo.TrackerRepo
	Enrollments    enrollmentrepo.EnrollmentRepo
	Reminders      enrollmentrepo.ReminderRepo
	Assessments    assessmentrepo.AssessmentRepo
	Configs        assessmentrepo.ConfigRepo
	Schedules      assessmentrepo.ScheduleRepo
	Results        assessmentrepo.AttemptResultRepo
	Submissions    assessmentrepo.SubmissionRepo
	Calendar       calendarrepo.CalendarRepo
	Milestones     gamrepo.MilestoneRepo
	Badges         gamrepo.BadgeRepo
	Leaderboard    gamrepo.LeaderboardRepo
	BadgeActs      gamrepo.BadgeActivityRepo
	Experts        gamrepo.ExpertRepo
	JobRuns        jobsrepo.JobRunRepo
}

// wireRepos builds every repo once. Repos hold no tenant handle of their
// own; callers pass the tenant database (or transaction) per call through
// dbctx.Context.
func wireRepos(log *logger.Logger) Repos {
	return Repos{
		Users:          userrepo.NewUserRepo(nil, log),
		TenantSettings: userrepo.NewTenantSettingRepo(nil, log),
		Catalog:        catalogrepo.NewCatalogRepo(nil, log),
		Catalogues:     catalogrepo.NewCatalogueRepo(nil, log),
		Trackers:       trackerrepo.NewTrackerRepo(nil, log),
		Enrollments:    enrollmentrepo.NewEnrollmentRepo(nil, log),
		Reminders:      enrollmentrepo.NewReminderRepo(nil, log),
		Assessments:    assessmentrepo.NewAssessmentRepo(nil, log),
		Configs:        assessmentrepo.NewConfigRepo(nil, log),
		Schedules:      assessmentrepo.NewScheduleRepo(nil, log),
		Results:        assessmentrepo.NewAttemptResultRepo(nil, log),
		Submissions:    assessmentrepo.NewSubmissionRepo(nil, log),
		Calendar:       calendarrepo.NewCalendarRepo(nil, log),
		Milestones:     gamrepo.NewMilestoneRepo(nil, log),
		Badges:         gamrepo.NewBadgeRepo(nil, log),
		Leaderboard:    gamrepo.NewLeaderboardRepo(nil, log),
		BadgeActs:      gamrepo.NewBadgeActivityRepo(nil, log),
		Experts:        gamrepo.NewExpertRepo(nil, log),
		JobRuns:        jobsrepo.NewJobRunRepo(nil, log),
	}
}

package app

import (
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	jobhandlers "github.com/learnsphere/learnsphere-backend/internal/jobs/handlers"
	"github.com/learnsphere/learnsphere-backend/internal/notify"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	attemptsvc "github.com/learnsphere/learnsphere-backend/internal/services/attempt"
	catalogsvc "github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/configresolver"
	enrollmentsvc "github.com/learnsphere/learnsphere-backend/internal/services/enrollment"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
	learningsvc "github.com/learnsphere/learnsphere-backend/internal/services/learning"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
	"github.com/learnsphere/learnsphere-backend/internal/services/reminder"
	submissionsvc "github.com/learnsphere/learnsphere-backend/internal/services/submission"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

type Services struct {
	Catalog     catalogsvc.Service
	Configs     configresolver.Service
	Dispatcher  gamification.Dispatcher
	Aggregator  progress.Aggregator
	Attempts    attemptsvc.Service
	Submissions submissionsvc.Service
	Enrollments enrollmentsvc.Service
	Learning    learningsvc.Service
	Reminders   reminder.Scheduler
	Notifier    notify.Notifier
	Enqueuer    jobs.Enqueuer
	Worker      *jobs.Worker
	Scheduler   *jobs.Scheduler
}

func wireServices(log *logger.Logger, registry *tenant.Registry, repos Repos, clients Clients) Services {
	enqueuer := jobs.NewEnqueuer(log, repos.JobRuns)
	notifier := notify.New(log, clients.Mail)

	catalogService := catalogsvc.NewService(log, repos.Catalog, clients.CCMS)
	configs := configresolver.NewService(log, repos.Configs, repos.Catalogues)
	dispatcher := gamification.NewDispatcher(log,
		repos.Milestones, repos.Badges, repos.Leaderboard, repos.BadgeActs, repos.Experts)

	aggregator := progress.NewAggregator(log,
		repos.Trackers, repos.Enrollments, repos.Users, catalogService, dispatcher, enqueuer)

	attempts := attemptsvc.NewService(log, registry, clients.Gateway,
		repos.Assessments, repos.Schedules, repos.Results, repos.Trackers, repos.Users,
		configs, catalogService, dispatcher, aggregator)

	submissions := submissionsvc.NewService(log,
		repos.Submissions, repos.Trackers, repos.Users, repos.TenantSettings,
		configs, catalogService, clients.Bucket, aggregator, enqueuer)

	enrollments := enrollmentsvc.NewService(log,
		repos.Enrollments, repos.Users, repos.TenantSettings, repos.Catalogues,
		repos.Catalog, repos.Calendar, catalogService, dispatcher, enqueuer)

	learning := learningsvc.NewService(log,
		repos.Trackers, repos.Enrollments, repos.Assessments, repos.Users,
		configs, catalogService, clients.Labs)

	reminders := reminder.NewScheduler(log,
		repos.Enrollments, repos.Reminders, repos.Trackers, repos.Users,
		repos.TenantSettings, catalogService, enqueuer)

	worker := jobs.NewWorker(log, jobs.WorkerConfigFromEnv(), registry, repos.JobRuns)
	jobhandlers.RegisterAll(worker, jobhandlers.Deps{
		Log:         log,
		Notifier:    notifier,
		Chat:        clients.Chat,
		Calendar:    repos.Calendar,
		Users:       repos.Users,
		Bucket:      clients.Bucket,
		Enrollments: enrollments,
		Reminders:   reminders,
		Aggregator:  aggregator,
	})

	return Services{
		Catalog:     catalogService,
		Configs:     configs,
		Dispatcher:  dispatcher,
		Aggregator:  aggregator,
		Attempts:    attempts,
		Submissions: submissions,
		Enrollments: enrollments,
		Learning:    learning,
		Reminders:   reminders,
		Notifier:    notifier,
		Enqueuer:    enqueuer,
		Worker:      worker,
		Scheduler:   jobs.NewScheduler(log, registry, repos.JobRuns),
	}
}

// Package reminder runs the end-date reminder scan: admitted enrollments
// whose end date is exactly the configured number of days away, and whose
// work is not finished, produce one reminder email each.
package reminder

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"

	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
)

type Scheduler interface {
	// Scan walks one tenant's admitted enrollments and enqueues reminder
	// emails for those hitting their configured lead time today.
	Scan(ctx context.Context, tenantName string, db *gorm.DB) (int, error)
}

type scheduler struct {
	log         *logger.Logger
	enrollments enrollmentrepo.EnrollmentRepo
	reminders   enrollmentrepo.ReminderRepo
	trackers    trackerrepo.TrackerRepo
	users       userrepo.UserRepo
	settings    userrepo.TenantSettingRepo
	catalog     catalog.Service
	enqueue     jobs.Enqueuer
}

func NewScheduler(
	log *logger.Logger,
	enrollments enrollmentrepo.EnrollmentRepo,
	reminders enrollmentrepo.ReminderRepo,
	trackers trackerrepo.TrackerRepo,
	users userrepo.UserRepo,
	settings userrepo.TenantSettingRepo,
	catalogSvc catalog.Service,
	enqueue jobs.Enqueuer,
) Scheduler {
	return &scheduler{
		log:         log.With("service", "ReminderScheduler"),
		enrollments: enrollments,
		reminders:   reminders,
		trackers:    trackers,
		users:       users,
		settings:    settings,
		catalog:     catalogSvc,
		enqueue:     enqueue,
	}
}

func (s *scheduler) Scan(ctx context.Context, tenantName string, db *gorm.DB) (int, error) {
	dbc := dbctx.Context{Ctx: ctx, Tx: db}

	configured, err := s.reminders.List(dbc)
	if err != nil {
		return 0, err
	}
	if len(configured) == 0 {
		return 0, nil
	}
	daysByKind := map[types.ArtifactKind]int{}
	for _, r := range configured {
		daysByKind[r.ArtifactKind] = r.Days
	}

	setting, err := s.settings.Get(dbc)
	if err != nil {
		return 0, err
	}

	rows, err := s.enrollments.ListAdmittedWithEndDate(dbc)
	if err != nil {
		return 0, err
	}

	today := truncateToDay(time.Now())
	sent := 0
	for _, e := range rows {
		days, ok := daysByKind[e.ArtifactKind]
		if !ok || e.UserID == nil || e.EndDate == nil {
			continue
		}
		if int(truncateToDay(*e.EndDate).Sub(today).Hours()/24) != days {
			continue
		}

		t, err := s.trackers.GetByUserArtifact(dbc, *e.UserID, e.Ref())
		if err != nil {
			return sent, err
		}
		if t != nil && t.IsCompleted {
			continue
		}
		var pct float64
		if t != nil {
			pct = t.Progress
		}

		u, err := s.users.GetByID(dbc, *e.UserID)
		if err != nil {
			return sent, err
		}
		if u == nil {
			continue
		}
		meta, err := s.catalog.GetArtifact(dbc, e.Ref())
		if err != nil {
			s.log.Warn("reminder skipped, artifact lookup failed",
				"enrollment", e.ID, "error", err)
			continue
		}

		payload := jobs.EmailPayload{
			Template: "enrollment_reminder",
			To:       []string{u.Email},
			Vars: map[string]string{
				"user_name":         u.FullName(),
				"artifact_type":     string(e.ArtifactKind),
				"artifact_name":     meta.Name,
				"artifact_progress": formatPercent(pct),
				"end_date":          e.EndDate.Format("01/02/2006"),
				"website_url":       setting.WebsiteURL,
			},
		}
		if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeEmailSend, e.UserID, payload); err != nil {
			s.log.Error("enqueue reminder failed", "enrollment", e.ID, "error", err)
			continue
		}
		sent++
	}
	s.log.Info("reminder scan finished", "tenant", tenantName, "reminders", sent)
	return sent, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(progress.Round2(v), 'f', -1, 64) + "%"
}

package jobs

import (
	"context"
	"time"

	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

// Scheduler stages the recurring jobs. The queue itself dedupes nothing, so
// the scheduler checks for a same-day row before enqueueing.
type Scheduler struct {
	log      *logger.Logger
	registry *tenant.Registry
	runs     jobsrepo.JobRunRepo
	interval time.Duration
}

func NewScheduler(log *logger.Logger, registry *tenant.Registry, runs jobsrepo.JobRunRepo) *Scheduler {
	return &Scheduler{
		log:      log.With("component", "JobScheduler"),
		registry: registry,
		runs:     runs,
		interval: envutil.DurationSeconds("JOB_SCHEDULER_INTERVAL_SECONDS", time.Hour),
	}
}

// Run blocks until ctx is canceled, staging one reminder scan per tenant per
// calendar day.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, name := range s.registry.Names() {
		db, err := s.registry.Handle(name)
		if err != nil {
			continue
		}
		dbc := dbctx.Context{Ctx: ctx, Tx: db}
		n, err := s.runs.CountByTypeSince(dbc, types.JobTypeReminderScan, midnight)
		if err != nil {
			s.log.Error("reminder scan lookup failed", "tenant", name, "error", err)
			continue
		}
		if n > 0 {
			continue
		}
		if _, err := s.runs.Create(dbc, []*types.JobRun{{
			Tenant:  name,
			JobType: types.JobTypeReminderScan,
			Payload: []byte(`{}`),
		}}); err != nil {
			s.log.Error("reminder scan enqueue failed", "tenant", name, "error", err)
			continue
		}
		s.log.Info("reminder scan scheduled", "tenant", name)
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

// Handler executes one claimed job against its tenant database.
type Handler func(ctx context.Context, tenantName string, db *gorm.DB, job *types.JobRun) error

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
}

func WorkerConfigFromEnv() WorkerConfig {
	return WorkerConfig{
		Concurrency:  envutil.Int("JOB_WORKER_CONCURRENCY", 4),
		PollInterval: envutil.DurationSeconds("JOB_POLL_INTERVAL_SECONDS", 5*time.Second),
		MaxAttempts:  envutil.Int("JOB_MAX_ATTEMPTS", 5),
		RetryDelay:   envutil.DurationSeconds("JOB_RETRY_DELAY_SECONDS", 60*time.Second),
		StaleRunning: envutil.DurationSeconds("JOB_STALE_RUNNING_SECONDS", 10*time.Minute),
	}
}

// Worker claims queued jobs round-robin across every tenant database and
// dispatches them to registered handlers.
type Worker struct {
	log      *logger.Logger
	cfg      WorkerConfig
	registry *tenant.Registry
	runs     jobsrepo.JobRunRepo
	handlers map[string]Handler
}

func NewWorker(log *logger.Logger, cfg WorkerConfig, registry *tenant.Registry, runs jobsrepo.JobRunRepo) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Worker{
		log:      log.With("component", "JobWorker"),
		cfg:      cfg,
		registry: registry,
		runs:     runs,
		handlers: map[string]Handler{},
	}
}

func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		worked := false
		for _, name := range w.registry.Names() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			db, err := w.registry.Handle(name)
			if err != nil {
				continue
			}
			job, err := w.runs.ClaimNextRunnable(dbctx.Context{Ctx: ctx, Tx: db},
				w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
			if err != nil {
				w.log.Error("claim failed", "tenant", name, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			worked = true
			w.execute(ctx, name, db, job)
		}
		if !worked {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

func (w *Worker) execute(ctx context.Context, tenantName string, db *gorm.DB, job *types.JobRun) {
	dbc := dbctx.Context{Ctx: ctx, Tx: db}
	h, ok := w.handlers[job.JobType]
	if !ok {
		w.log.Error("no handler for job type", "type", job.JobType, "job", job.ID)
		_ = w.runs.UpdateFields(dbc, job.ID, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error":         fmt.Sprintf("no handler for job type %q", job.JobType),
			"last_error_at": time.Now(),
		})
		return
	}

	start := time.Now()
	err := h(ctx, tenantName, db, job)
	if err != nil {
		w.log.Error("job failed",
			"type", job.JobType, "job", job.ID, "tenant", tenantName,
			"attempt", job.Attempts+1, "error", err)
		_ = w.runs.UpdateFields(dbc, job.ID, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error":         err.Error(),
			"last_error_at": time.Now(),
		})
		return
	}
	w.log.Info("job done",
		"type", job.JobType, "job", job.ID, "tenant", tenantName,
		"elapsed", time.Since(start))
	_ = w.runs.UpdateFields(dbc, job.ID, map[string]interface{}{
		"status": types.JobStatusSucceeded,
		"error":  "",
	})
}

// DecodePayload unmarshals a job payload into the handler's typed shape.
func DecodePayload(job *types.JobRun, out interface{}) error {
	if len(job.Payload) == 0 {
		return fmt.Errorf("job %s has no payload", job.ID)
	}
	if err := json.Unmarshal(job.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.JobType, err)
	}
	return nil
}

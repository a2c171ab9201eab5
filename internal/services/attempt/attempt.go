// Package attempt manages provider-backed assessment attempts: scheduling,
// result ingestion by pull or webhook, and reattempt grants. The attempt
// invariant is allowed = available + ingested - reattempts; every write path
// recomputes available from that identity instead of decrementing blindly.
package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/learnsphere-backend/internal/clients/provider"
	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/configresolver"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

// courseExpertThreshold is the final-assessment score at or above which a
// learner is promoted to course expert.
const courseExpertThreshold = 80.0

type StartInput struct {
	UserID       uuid.UUID
	AssessmentID uuid.UUID
	// LearningRef is the container the learner reached the assessment
	// through; it rides the schedule envelope so webhook results can award
	// against the right artifact.
	LearningRef     types.ArtifactRef
	ParentTrackerID *uuid.UUID
	EnrollmentID    *uuid.UUID
}

type StartResult struct {
	Tracker      *types.Tracker
	ScheduleLink string
}

// WebhookAttempt mirrors the provider push shape; field names follow the
// provider's casing and must not change.
type WebhookAttempt struct {
	AttemptNumber     int        `json:"attemptNumber"`
	Status            string     `json:"status"`
	Duration          int        `json:"duration"`
	TotalQuestions    int        `json:"totalQuestions"`
	AnsweredQuestions int        `json:"answeredQuestions"`
	ScorePercentage   float64    `json:"scorePercentage"`
	ActualStart       *time.Time `json:"actualStart"`
	ActualEnd         *time.Time `json:"actualEnd"`
}

type WebhookSchedule struct {
	ScheduleID                 int64            `json:"scheduleId"`
	ExternalScheduleConfigArgs string           `json:"externalScheduleConfigArgs"`
	Attempts                   []WebhookAttempt `json:"attempts"`
}

type WebhookRequest struct {
	UserEmailAddress string            `json:"userEmailAddress"`
	Schedules        []WebhookSchedule `json:"schedules"`
}

type Service interface {
	// Start resolves config, ensures the assessment tracker, and reserves a
	// provider schedule. Calling it again returns the existing reservation.
	Start(ctx context.Context, tenantName string, db *gorm.DB, in StartInput) (*StartResult, error)

	// PullResults fetches provider attempts for a tracker, ingests them, and
	// returns the updated tracker with the stored attempt rows.
	PullResults(ctx context.Context, tenantName string, db *gorm.DB, trackerID uuid.UUID) (*types.Tracker, []*types.AttemptResult, error)

	// IngestWebhook routes pushed results to their tenants. Rejected or
	// unroutable entries are logged and skipped; the caller acknowledges
	// regardless once persistence has been attempted.
	IngestWebhook(ctx context.Context, req WebhookRequest)

	// GrantReattempt adds one attempt on an exhausted tracker, provider side
	// first.
	GrantReattempt(ctx context.Context, tenantName string, db *gorm.DB, trackerID uuid.UUID) (*types.Tracker, error)
}

type service struct {
	log         *logger.Logger
	registry    *tenant.Registry
	gateway     *provider.Gateway
	assessments assessmentrepo.AssessmentRepo
	schedules   assessmentrepo.ScheduleRepo
	results     assessmentrepo.AttemptResultRepo
	trackers    trackerrepo.TrackerRepo
	users       userrepo.UserRepo
	configs     configresolver.Service
	catalog     catalog.Service
	dispatcher  gamification.Dispatcher
	aggregator  progress.Aggregator
}

func NewService(
	log *logger.Logger,
	registry *tenant.Registry,
	gateway *provider.Gateway,
	assessments assessmentrepo.AssessmentRepo,
	schedules assessmentrepo.ScheduleRepo,
	results assessmentrepo.AttemptResultRepo,
	trackers trackerrepo.TrackerRepo,
	users userrepo.UserRepo,
	configs configresolver.Service,
	catalogSvc catalog.Service,
	dispatcher gamification.Dispatcher,
	aggregator progress.Aggregator,
) Service {
	return &service{
		log:         log.With("service", "AttemptManager"),
		registry:    registry,
		gateway:     gateway,
		assessments: assessments,
		schedules:   schedules,
		results:     results,
		trackers:    trackers,
		users:       users,
		configs:     configs,
		catalog:     catalogSvc,
		dispatcher:  dispatcher,
		aggregator:  aggregator,
	}
}

func (s *service) Start(ctx context.Context, tenantName string, db *gorm.DB, in StartInput) (*StartResult, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}

	a, err := s.assessments.GetByID(read, in.AssessmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("assessment")
	}
	u, err := s.users.GetByID(read, in.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	groupIDs, err := s.users.GroupIDsForUser(read, in.UserID)
	if err != nil {
		return nil, err
	}

	assessmentRef := types.ArtifactRef{Kind: types.KindAssessment, ID: a.ID}
	cfg, err := s.configs.ResolveAssessment(read, assessmentRef, in.UserID, groupIDs)
	if err != nil {
		return nil, err
	}

	allowed := cfg.TotalAttempts
	if a.AllowedAttempts != nil {
		allowed = *a.AllowedAttempts
	}
	passPct := cfg.PassPercentage
	if a.PassPercentage > 0 {
		passPct = a.PassPercentage
	}

	tracker, _, err := s.trackers.Upsert(read, &types.Tracker{
		UserID:           in.UserID,
		ArtifactKind:     types.KindAssessment,
		ArtifactID:       a.ID,
		ParentID:         in.ParentTrackerID,
		EnrollmentID:     in.EnrollmentID,
		AllowedAttempt:   allowed,
		AvailableAttempt: allowed,
	})
	if err != nil {
		return nil, err
	}

	if existing, err := s.schedules.GetByTracker(read, tracker.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return &StartResult{Tracker: tracker, ScheduleLink: existing.ScheduleLink}, nil
	}

	adapter, err := s.gateway.For(a.ProviderType)
	if err != nil {
		return nil, err
	}
	args := provider.ConfigArgs{
		TenantID:       tenantName,
		LearningKind:   in.LearningRef.Kind,
		LearningID:     in.LearningRef.ID,
		AssessmentKind: a.Kind,
		AssessmentID:   a.ID,
		IsExternal:     in.LearningRef.IsExternal,
	}
	res, err := adapter.Schedule(ctx, provider.ScheduleRequest{
		UserEmail:   u.Email,
		UserName:    u.FullName(),
		ProviderRef: a.ProviderRef,
		Config: provider.ScheduleConfig{
			TotalAttempts:           allowed,
			PassPercentage:          passPct,
			DurationMinutes:         cfg.DurationMinutes,
			NegativeScorePercentage: cfg.NegativeScorePercentage,
			EnableShuffling:         cfg.EnableShuffling,
			ResultType:              cfg.ResultType,
			RedirectURL:             cfg.RedirectURL,
			EnableProctoring:        cfg.EnableProctoring,
			EnableAeyeProctoring:    cfg.EnableAeyeProctoring,
			ProctoringConfig:        []byte(cfg.ProctoringConfig),
			EnablePlagiarism:        cfg.EnablePlagiarism,
			ConfigArgs:              args,
		},
	})
	if err != nil {
		return nil, err
	}

	rawArgs, err := args.Encode()
	if err != nil {
		return nil, err
	}
	created, err := s.schedules.Create(read, &types.AssessmentSchedule{
		TrackerID:        tracker.ID,
		UserID:           in.UserID,
		UserEmail:        u.Email,
		AssessmentID:     a.ID,
		ProviderType:     a.ProviderType,
		ScheduleID:       res.ScheduleID,
		ScheduleLink:     res.ScheduleLink,
		ExternalInviteID: res.InviteID,
		ConfigArgs:       rawArgs,
	})
	if err != nil {
		// A concurrent start won the unique tracker slot; theirs stands.
		if won, ferr := s.schedules.GetByTracker(read, tracker.ID); ferr == nil && won != nil {
			return &StartResult{Tracker: tracker, ScheduleLink: won.ScheduleLink}, nil
		}
		return nil, err
	}

	if err := s.trackers.UpdateFields(read, tracker.ID, map[string]interface{}{
		"last_accessed_on": time.Now(),
	}); err != nil {
		return nil, err
	}
	s.log.Info("assessment scheduled",
		"tracker", tracker.ID, "provider", a.ProviderType, "schedule_id", created.ScheduleID)
	return &StartResult{Tracker: tracker, ScheduleLink: created.ScheduleLink}, nil
}

func (s *service) PullResults(ctx context.Context, tenantName string, db *gorm.DB, trackerID uuid.UUID) (*types.Tracker, []*types.AttemptResult, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	sched, err := s.schedules.GetByTracker(read, trackerID)
	if err != nil {
		return nil, nil, err
	}
	if sched == nil {
		return nil, nil, apperr.New(apperr.KindConflictingState, "assessment has not been started")
	}
	adapter, err := s.gateway.For(sched.ProviderType)
	if err != nil {
		return nil, nil, err
	}
	attempts, err := adapter.FetchResults(ctx, sched.ScheduleID, sched.ExternalInviteID, sched.UserEmail)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.ingest(ctx, tenantName, db, sched, attempts)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.results.ListBySchedule(read, sched.ID)
	if err != nil {
		return nil, nil, err
	}
	return t, rows, nil
}

func (s *service) IngestWebhook(ctx context.Context, req WebhookRequest) {
	for _, entry := range req.Schedules {
		args, err := provider.DecodeConfigArgs([]byte(entry.ExternalScheduleConfigArgs))
		if err != nil {
			s.log.Warn("webhook entry has undecodable config args",
				"schedule_id", entry.ScheduleID, "error", err)
			continue
		}
		db, err := s.registry.Handle(args.TenantID)
		if err != nil {
			s.log.Warn("webhook entry names unknown tenant",
				"schedule_id", entry.ScheduleID, "tenant", args.TenantID)
			continue
		}
		read := dbctx.Context{Ctx: ctx, Tx: db}
		sched, err := s.schedules.GetByScheduleAndEmail(read, entry.ScheduleID, req.UserEmailAddress)
		if err != nil {
			s.log.Error("webhook schedule lookup failed",
				"schedule_id", entry.ScheduleID, "tenant", args.TenantID, "error", err)
			continue
		}
		if sched == nil {
			s.log.Warn("webhook entry matches no schedule",
				"schedule_id", entry.ScheduleID, "tenant", args.TenantID)
			continue
		}

		attempts := make([]provider.Attempt, 0, len(entry.Attempts))
		for _, a := range entry.Attempts {
			attempts = append(attempts, provider.Attempt{
				Number:            a.AttemptNumber,
				Status:            a.Status,
				DurationSecs:      a.Duration,
				TotalQuestions:    a.TotalQuestions,
				AnsweredQuestions: a.AnsweredQuestions,
				ScorePercentage:   a.ScorePercentage,
				StartedAt:         a.ActualStart,
				EndedAt:           a.ActualEnd,
			})
		}
		if _, err := s.ingest(ctx, args.TenantID, db, sched, attempts); err != nil {
			s.log.Error("webhook ingestion failed",
				"schedule_id", entry.ScheduleID, "tenant", args.TenantID, "error", err)
		}
	}
}

func (s *service) GrantReattempt(ctx context.Context, tenantName string, db *gorm.DB, trackerID uuid.UUID) (*types.Tracker, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	t, err := s.trackers.GetByID(read, trackerID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("tracker")
	}
	if t.AvailableAttempt > 0 {
		return nil, apperr.New(apperr.KindConflictingState, "attempts are still available")
	}
	sched, err := s.schedules.GetByTracker(read, trackerID)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, apperr.New(apperr.KindConflictingState, "assessment has not been started")
	}

	adapter, err := s.gateway.For(sched.ProviderType)
	if err != nil {
		return nil, err
	}
	if err := adapter.GrantExtraAttempt(ctx, sched.ScheduleID, sched.UserEmail, 1); err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := s.trackers.LockByID(dbc, trackerID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("tracker")
		}
		t = locked
		// The grant raises the allowance itself; bumping reattempt_count too
		// would hand out a second free attempt when ingest recomputes
		// available from allowed + reattempts - ingested.
		t.AllowedAttempt++
		t.AvailableAttempt++
		return s.trackers.UpdateFields(dbc, t.ID, map[string]interface{}{
			"allowed_attempt":   t.AllowedAttempt,
			"available_attempt": t.AvailableAttempt,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reattempt granted", "tracker", t.ID, "allowed", t.AllowedAttempt)
	return t, nil
}

// ingest persists completed provider attempts and recomputes the tracker.
// Provider and catalog lookups happen before the transaction opens.
func (s *service) ingest(ctx context.Context, tenantName string, db *gorm.DB, sched *types.AssessmentSchedule, attempts []provider.Attempt) (*types.Tracker, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}

	a, err := s.assessments.GetByID(read, sched.AssessmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("assessment")
	}
	leaf, err := s.trackers.GetByID(read, sched.TrackerID)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, apperr.NotFound("tracker")
	}

	passPct := a.PassPercentage
	if passPct <= 0 {
		groupIDs, err := s.users.GroupIDsForUser(read, sched.UserID)
		if err != nil {
			return nil, err
		}
		cfg, err := s.configs.ResolveAssessment(read,
			types.ArtifactRef{Kind: types.KindAssessment, ID: a.ID}, sched.UserID, groupIDs)
		if err != nil {
			return nil, err
		}
		passPct = cfg.PassPercentage
	}

	args, argsErr := provider.DecodeConfigArgs(sched.ConfigArgs)
	var learningMeta *catalog.Artifact
	if argsErr == nil {
		learningRef := types.ArtifactRef{Kind: args.LearningKind, ID: args.LearningID, IsExternal: args.IsExternal}
		if learningMeta, err = s.catalog.GetArtifact(read, learningRef); err != nil {
			s.log.Warn("learning artifact lookup failed during ingest",
				"tracker", leaf.ID, "artifact", learningRef.String(), "error", err)
			learningMeta = nil
		}
	}

	plan, err := s.aggregator.Plan(ctx, db, leaf)
	if err != nil {
		return nil, err
	}

	rows := make([]*types.AttemptResult, 0, len(attempts))
	for _, at := range attempts {
		if !at.Completed() {
			continue
		}
		score := progress.Round2(at.ScorePercentage)
		rows = append(rows, &types.AttemptResult{
			ScheduleRowID:     sched.ID,
			AttemptNumber:     at.Number,
			DurationSecs:      at.DurationSecs,
			TotalQuestions:    at.TotalQuestions,
			AnsweredQuestions: at.AnsweredQuestions,
			Progress:          score,
			IsPass:            score >= passPct,
			StartedAt:         at.StartedAt,
			EndedAt:           at.EndedAt,
		})
	}

	var updated *types.Tracker
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := s.trackers.LockByID(dbc, leaf.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("tracker")
		}
		if err := s.results.UpsertBatch(dbc, rows); err != nil {
			return err
		}
		all, err := s.results.ListBySchedule(dbc, sched.ID)
		if err != nil {
			return err
		}

		var best float64
		anyPass := false
		for _, r := range all {
			if r.Progress > best {
				best = r.Progress
			}
			if r.IsPass {
				anyPass = true
			}
		}
		available := locked.AllowedAttempt + locked.ReattemptCount - len(all)
		if available < 0 {
			available = 0
		}
		newProgress := progress.Monotonic(locked.Progress, best)
		justCompleted := anyPass && !locked.IsCompleted

		now := time.Now()
		updates := map[string]interface{}{
			"progress":          newProgress,
			"is_pass":           anyPass || locked.IsPass,
			"available_attempt": available,
			"last_accessed_on":  now,
		}
		if justCompleted {
			updates["is_completed"] = true
			updates["completion_date"] = now
		}
		if err := s.trackers.UpdateFields(dbc, locked.ID, updates); err != nil {
			return err
		}
		locked.Progress = newProgress
		locked.IsPass = anyPass || locked.IsPass
		locked.AvailableAttempt = available
		if justCompleted {
			locked.IsCompleted = true
			locked.CompletionDate = &now
		}

		if justCompleted {
			if err := s.dispatcher.Emit(dbc, locked.UserID,
				[]types.MilestoneName{types.MilestoneYakshaCompletion}, locked.Ref()); err != nil {
				return err
			}
			if argsErr == nil && learningMeta != nil {
				learningRef := types.ArtifactRef{Kind: args.LearningKind, ID: args.LearningID, IsExternal: args.IsExternal}
				if err := s.dispatcher.AwardAssessmentBadge(dbc, locked.UserID,
					learningMeta.Proficiency, learningRef, locked.ID, best); err != nil {
					return err
				}
			}
			if argsErr == nil && a.Kind == types.AssessmentFinal &&
				args.LearningKind == types.KindCourse && best >= courseExpertThreshold {
				if err := s.dispatcher.PromoteExpert(dbc, locked.UserID, args.LearningID, best); err != nil {
					return err
				}
			}
			if err := s.aggregator.Apply(dbc, tenantName, plan, locked); err != nil {
				return err
			}
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

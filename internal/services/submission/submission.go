// Package submission handles file-based attempts: learner uploads against
// assignments and file-submission submodules, and the reviewer flow that
// scores evaluated ones. Uploads land in object storage before the database
// transaction opens.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/blob"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/configresolver"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
)

const signedURLTTL = 15 * time.Minute

type FileInput struct {
	Name      string
	SizeBytes int64
	Reader    io.Reader
}

type SubmitInput struct {
	UserID      uuid.UUID
	TrackerID   uuid.UUID
	Description string
	Files       []FileInput
}

type ReviewInput struct {
	SubmissionID uuid.UUID
	ReviewerID   uuid.UUID
	Feedback     string
	Progress     float64
}

type Service interface {
	// Submit validates, uploads, and records one submission attempt.
	// Non-evaluated artifacts complete immediately; evaluated ones wait for
	// review.
	Submit(ctx context.Context, tenantName string, db *gorm.DB, in SubmitInput) (*types.Submission, error)

	// Review scores a pending submission. A passing score completes the
	// tracker and cascades.
	Review(ctx context.Context, tenantName string, db *gorm.DB, in ReviewInput) (*types.Submission, error)

	// ListByTracker returns the learner's submission attempts for a tracker,
	// oldest first. Owner-checked.
	ListByTracker(ctx context.Context, db *gorm.DB, userID, trackerID uuid.UUID) ([]*types.Submission, error)

	// FileURL signs a download link for a stored submission file.
	FileURL(ctx context.Context, db *gorm.DB, submissionID uuid.UUID, storageKey string) (string, error)
}

type service struct {
	log         *logger.Logger
	submissions assessmentrepo.SubmissionRepo
	trackers    trackerrepo.TrackerRepo
	users       userrepo.UserRepo
	settings    userrepo.TenantSettingRepo
	configs     configresolver.Service
	catalog     catalog.Service
	bucket      blob.BucketService
	aggregator  progress.Aggregator
	enqueue     jobs.Enqueuer
}

func NewService(
	log *logger.Logger,
	submissions assessmentrepo.SubmissionRepo,
	trackers trackerrepo.TrackerRepo,
	users userrepo.UserRepo,
	settings userrepo.TenantSettingRepo,
	configs configresolver.Service,
	catalogSvc catalog.Service,
	bucket blob.BucketService,
	aggregator progress.Aggregator,
	enqueue jobs.Enqueuer,
) Service {
	return &service{
		log:         log.With("service", "SubmissionService"),
		submissions: submissions,
		trackers:    trackers,
		users:       users,
		settings:    settings,
		configs:     configs,
		catalog:     catalogSvc,
		bucket:      bucket,
		aggregator:  aggregator,
		enqueue:     enqueue,
	}
}

func (s *service) Submit(ctx context.Context, tenantName string, db *gorm.DB, in SubmitInput) (*types.Submission, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}

	t, err := s.trackers.GetByID(read, in.TrackerID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("tracker")
	}
	if t.UserID != in.UserID {
		return nil, apperr.Validation("tracker does not belong to the submitting user")
	}

	meta, err := s.catalog.GetArtifact(read, t.Ref())
	if err != nil {
		return nil, err
	}
	if !acceptsFiles(t.ArtifactKind, meta) {
		return nil, apperr.Validation("artifact does not accept file submissions")
	}
	if t.AvailableAttempt <= 0 {
		return nil, apperr.New(apperr.KindAttemptsExhausted, "no submission attempts remaining")
	}

	groupIDs, err := s.users.GroupIDsForUser(read, in.UserID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.ResolveSubmission(read, t.Ref(), in.UserID, groupIDs)
	if err != nil {
		return nil, err
	}
	if err := validateFiles(in.Files, cfg); err != nil {
		return nil, err
	}

	count, err := s.submissions.CountByTracker(read, t.ID)
	if err != nil {
		return nil, err
	}
	attempt := int(count) + 1

	stored := make([]types.SubmissionFile, 0, len(in.Files))
	for _, f := range in.Files {
		key := blob.SubmissionKey(tenantName, t.ID.String(), attempt, f.Name)
		if err := s.bucket.UploadFile(ctx, key, f.Reader); err != nil {
			return nil, apperr.Wrap(apperr.KindProviderUnavailable, "upload submission file", err)
		}
		stored = append(stored, types.SubmissionFile{Name: f.Name, StorageKey: key, SizeBytes: f.SizeBytes})
	}
	filesJSON, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}

	nonEvaluated := meta.EvaluationType == types.EvaluationNonEvaluated

	plan, err := s.aggregator.Plan(ctx, db, t)
	if err != nil {
		return nil, err
	}

	var created *types.Submission
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := s.trackers.LockByID(dbc, t.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("tracker")
		}

		sub := &types.Submission{
			TrackerID:      locked.ID,
			Attempt:        attempt,
			Files:          filesJSON,
			Description:    in.Description,
			PassPercentage: cfg.PassPercentage,
		}
		if nonEvaluated {
			sub.Progress = 100
			sub.IsPass = true
			sub.IsReviewed = true
		}
		// The unique (tracker, attempt) index rejects a concurrent submit
		// that claimed the same slot.
		created, err = s.submissions.Create(dbc, sub)
		if err != nil {
			return apperr.Wrap(apperr.KindConflictingState, "submission attempt already recorded", err)
		}

		used, err := s.submissions.CountByTracker(dbc, locked.ID)
		if err != nil {
			return err
		}
		available := locked.AllowedAttempt + locked.ReattemptCount - int(used)
		if available < 0 {
			available = 0
		}

		now := time.Now()
		if nonEvaluated {
			updates := map[string]interface{}{
				"available_attempt": available,
				"last_accessed_on":  now,
				"progress":          progress.Monotonic(locked.Progress, 100),
				"is_pass":           true,
			}
			if !locked.IsCompleted {
				updates["is_completed"] = true
				updates["completion_date"] = now
			}
			if err := s.trackers.UpdateFields(dbc, locked.ID, updates); err != nil {
				return err
			}
			locked.Progress = 100
			locked.IsPass = true
			if !locked.IsCompleted {
				locked.IsCompleted = true
				locked.CompletionDate = &now
			}
			return s.aggregator.Apply(dbc, tenantName, plan, locked)
		}

		if err := s.trackers.UpdateFields(dbc, locked.ID, map[string]interface{}{
			"available_attempt": available,
			"last_accessed_on":  now,
		}); err != nil {
			return err
		}
		return s.notifyReviewers(dbc, tenantName, locked, meta, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Review(ctx context.Context, tenantName string, db *gorm.DB, in ReviewInput) (*types.Submission, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}

	sub, err := s.submissions.GetByID(read, in.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("submission")
	}
	if sub.IsReviewed {
		return nil, apperr.New(apperr.KindConflictingState, "submission is already reviewed")
	}
	if in.Progress < 0 || in.Progress > 100 {
		return nil, apperr.Validation("review score must be between 0 and 100")
	}

	t, err := s.trackers.GetByID(read, sub.TrackerID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("tracker")
	}
	learner, err := s.users.GetByID(read, t.UserID)
	if err != nil {
		return nil, err
	}

	plan, err := s.aggregator.Plan(ctx, db, t)
	if err != nil {
		return nil, err
	}

	score := progress.Round2(in.Progress)
	isPass := score >= sub.PassPercentage

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := s.trackers.LockByID(dbc, t.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("tracker")
		}

		if err := s.submissions.UpdateFields(dbc, sub.ID, map[string]interface{}{
			"reviewer_id":       in.ReviewerID,
			"reviewer_feedback": in.Feedback,
			"progress":          score,
			"is_pass":           isPass,
			"is_reviewed":       true,
		}); err != nil {
			return err
		}
		sub.ReviewerID = &in.ReviewerID
		sub.ReviewerFeedback = in.Feedback
		sub.Progress = score
		sub.IsPass = isPass
		sub.IsReviewed = true

		// The review score stays on the submission row; the tracker only
		// records completion, so a passing review drives it to 100.
		now := time.Now()
		updates := map[string]interface{}{
			"last_accessed_on": now,
		}
		if isPass {
			updates["progress"] = progress.Monotonic(locked.Progress, 100)
			updates["is_pass"] = true
			if !locked.IsCompleted {
				updates["is_completed"] = true
				updates["completion_date"] = now
			}
		}
		if err := s.trackers.UpdateFields(dbc, locked.ID, updates); err != nil {
			return err
		}
		if isPass {
			locked.Progress = progress.Monotonic(locked.Progress, 100)
			locked.IsPass = true
			if !locked.IsCompleted {
				locked.IsCompleted = true
				locked.CompletionDate = &now
			}
		}

		if learner != nil {
			payload := jobs.EmailPayload{
				Template: "submission_reviewed",
				To:       []string{learner.Email},
				Vars: map[string]string{
					"user_name": learner.FullName(),
					"score":     fmt.Sprintf("%.2f", score),
					"result":    passLabel(isPass),
				},
			}
			if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeEmailSend, &locked.UserID, payload); err != nil {
				s.log.Error("enqueue review email failed", "submission", sub.ID, "error", err)
			}
		}

		if isPass {
			return s.aggregator.Apply(dbc, tenantName, plan, locked)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) ListByTracker(ctx context.Context, db *gorm.DB, userID, trackerID uuid.UUID) ([]*types.Submission, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	t, err := s.trackers.GetByID(read, trackerID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, apperr.NotFound("tracker")
	}
	return s.submissions.ListByTracker(read, trackerID)
}

func (s *service) FileURL(ctx context.Context, db *gorm.DB, submissionID uuid.UUID, storageKey string) (string, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	sub, err := s.submissions.GetByID(read, submissionID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", apperr.NotFound("submission")
	}
	var files []types.SubmissionFile
	if err := json.Unmarshal(sub.Files, &files); err != nil {
		return "", err
	}
	for _, f := range files {
		if f.StorageKey == storageKey {
			return s.bucket.SignedURL(storageKey, signedURLTTL)
		}
	}
	return "", apperr.NotFound("submission file")
}

// notifyReviewers emails the artifact authors, falling back to the tenant
// staff address when none are set.
func (s *service) notifyReviewers(dbc dbctx.Context, tenantName string, t *types.Tracker, meta *catalog.Artifact, sub *types.Submission) error {
	recipients := splitEmails(meta.AuthorEmails)
	if len(recipients) == 0 {
		setting, err := s.settings.Get(dbc)
		if err != nil {
			return err
		}
		if setting.StaffEmail != "" {
			recipients = []string{setting.StaffEmail}
		}
	}
	if len(recipients) == 0 {
		s.log.Warn("submission has no reviewer recipients", "submission", sub.ID)
		return nil
	}
	payload := jobs.EmailPayload{
		Template: "submission_received",
		To:       recipients,
		Vars: map[string]string{
			"artifact_name": meta.Name,
			"attempt":       fmt.Sprintf("%d", sub.Attempt),
		},
	}
	if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeEmailSend, &t.UserID, payload); err != nil {
		s.log.Error("enqueue reviewer email failed", "submission", sub.ID, "error", err)
	}
	return nil
}

func acceptsFiles(kind types.ArtifactKind, meta *catalog.Artifact) bool {
	switch kind {
	case types.KindAssignment:
		return types.ToolAcceptsUploads(meta.Tool)
	case types.KindSubmodule:
		return meta.Type == types.SubmoduleFileSubmission
	}
	return false
}

func validateFiles(files []FileInput, cfg *types.SubmissionConfig) error {
	if len(files) == 0 {
		return apperr.Validation("at least one file is required")
	}
	if len(files) > cfg.MaxFilesAllowed {
		return apperr.Newf(apperr.KindValidation, "at most %d files allowed", cfg.MaxFilesAllowed)
	}
	allowed := map[string]bool{}
	for _, ext := range strings.Split(cfg.ExtensionsAllowed, ",") {
		ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if ext != "" {
			allowed[ext] = true
		}
	}
	for _, f := range files {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
		if !allowed[ext] {
			return apperr.Newf(apperr.KindValidation, "file extension %q is not allowed", ext)
		}
	}
	return nil
}

func splitEmails(raw string) []string {
	var out []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

func passLabel(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}

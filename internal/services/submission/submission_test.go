package submission

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	gamrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/gamification"
	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/data/repos/testutil"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	catalogsvc "github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/configresolver"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
)

// newSubmissionService wires the service against the test transaction. The
// bucket stays nil; these tests never reach object storage.
func newSubmissionService(t *testing.T) Service {
	t.Helper()
	log := testutil.Logger(t)
	dispatcher := gamification.NewDispatcher(log,
		gamrepo.NewMilestoneRepo(nil, log),
		gamrepo.NewBadgeRepo(nil, log),
		gamrepo.NewLeaderboardRepo(nil, log),
		gamrepo.NewBadgeActivityRepo(nil, log),
		gamrepo.NewExpertRepo(nil, log),
	)
	catSvc := catalogsvc.NewService(log, catalogrepo.NewCatalogRepo(nil, log), nil)
	aggregator := progress.NewAggregator(log,
		trackerrepo.NewTrackerRepo(nil, log),
		enrollmentrepo.NewEnrollmentRepo(nil, log),
		userrepo.NewUserRepo(nil, log),
		catSvc,
		dispatcher,
		jobs.NewEnqueuer(log, jobsrepo.NewJobRunRepo(nil, log)),
	)
	return NewService(log,
		assessmentrepo.NewSubmissionRepo(nil, log),
		trackerrepo.NewTrackerRepo(nil, log),
		userrepo.NewUserRepo(nil, log),
		userrepo.NewTenantSettingRepo(nil, log),
		configresolver.NewService(log,
			assessmentrepo.NewConfigRepo(nil, log),
			catalogrepo.NewCatalogueRepo(nil, log),
		),
		catSvc,
		nil,
		aggregator,
		jobs.NewEnqueuer(log, jobsrepo.NewJobRunRepo(nil, log)),
	)
}

func seedAssignment(t *testing.T, dbc dbctx.Context, tool string, passPct float64) *types.Assignment {
	t.Helper()
	a := &types.Assignment{
		ID:             uuid.New(),
		Name:           "Assignment " + uuid.NewString()[:8],
		Code:           "A-" + uuid.NewString()[:8],
		Tool:           tool,
		EvaluationType: types.EvaluationEvaluated,
		PassPercentage: passPct,
	}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(a).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return a
}

func seedPendingSubmission(t *testing.T, dbc dbctx.Context, trackerID uuid.UUID, passPct float64) *types.Submission {
	t.Helper()
	files, _ := json.Marshal([]types.SubmissionFile{{Name: "report.pdf", StorageKey: "k", SizeBytes: 1}})
	sub := &types.Submission{
		ID:             uuid.New(),
		TrackerID:      trackerID,
		Attempt:        1,
		Files:          files,
		PassPercentage: passPct,
	}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(sub).Error; err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	return sub
}

func TestReviewPassCompletesTracker(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	svc := newSubmissionService(t)

	u := testutil.SeedUser(t, dbc)
	a := seedAssignment(t, dbc, "", 70)
	reviewer := testutil.SeedUser(t, dbc)
	tr := testutil.SeedTracker(t, dbc, u.ID, types.LocalRef(types.KindAssignment, a.ID), nil)
	sub := seedPendingSubmission(t, dbc, tr.ID, 70)

	got, err := svc.Review(dbc.Ctx, "acme", dbc.Tx, ReviewInput{
		SubmissionID: sub.ID,
		ReviewerID:   reviewer.ID,
		Feedback:     "solid work",
		Progress:     85,
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got.Progress != 85 || !got.IsPass || !got.IsReviewed {
		t.Fatalf("submission = %.2f pass=%v reviewed=%v, want 85 pass reviewed",
			got.Progress, got.IsPass, got.IsReviewed)
	}

	// The score stays on the submission; the tracker records completion.
	var reloaded types.Tracker
	if err := dbc.Tx.Where("id = ?", tr.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload tracker: %v", err)
	}
	if reloaded.Progress != 100 || !reloaded.IsCompleted || !reloaded.IsPass {
		t.Fatalf("tracker = %.2f completed=%v pass=%v, want 100 completed pass",
			reloaded.Progress, reloaded.IsCompleted, reloaded.IsPass)
	}

	// Re-reviewing is refused.
	if _, err := svc.Review(dbc.Ctx, "acme", dbc.Tx, ReviewInput{
		SubmissionID: sub.ID,
		ReviewerID:   reviewer.ID,
		Progress:     10,
	}); !apperr.Is(err, apperr.KindConflictingState) {
		t.Fatalf("expected conflicting_state, got %v", err)
	}
}

func TestReviewFailLeavesTrackerOpen(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	svc := newSubmissionService(t)

	u := testutil.SeedUser(t, dbc)
	a := seedAssignment(t, dbc, "", 70)
	reviewer := testutil.SeedUser(t, dbc)
	tr := testutil.SeedTracker(t, dbc, u.ID, types.LocalRef(types.KindAssignment, a.ID), nil)
	sub := seedPendingSubmission(t, dbc, tr.ID, 70)

	got, err := svc.Review(dbc.Ctx, "acme", dbc.Tx, ReviewInput{
		SubmissionID: sub.ID,
		ReviewerID:   reviewer.ID,
		Progress:     50,
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got.Progress != 50 || got.IsPass {
		t.Fatalf("submission = %.2f pass=%v, want 50 fail", got.Progress, got.IsPass)
	}

	var reloaded types.Tracker
	if err := dbc.Tx.Where("id = ?", tr.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload tracker: %v", err)
	}
	if reloaded.Progress != 0 || reloaded.IsCompleted || reloaded.IsPass {
		t.Fatalf("failed review moved the tracker: %.2f completed=%v pass=%v",
			reloaded.Progress, reloaded.IsCompleted, reloaded.IsPass)
	}
}

func TestSubmitRefusedForLabToolAssignments(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	svc := newSubmissionService(t)

	u := testutil.SeedUser(t, dbc)
	lab := seedAssignment(t, dbc, types.ToolMML, 70)
	tr := testutil.SeedTracker(t, dbc, u.ID, types.LocalRef(types.KindAssignment, lab.ID), nil)

	_, err := svc.Submit(dbc.Ctx, "acme", dbc.Tx, SubmitInput{
		UserID:    u.ID,
		TrackerID: tr.ID,
		Files:     []FileInput{{Name: "work.zip", SizeBytes: 1, Reader: strings.NewReader("x")}},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The same shape without a lab tool gets past the gate and fails on the
	// attempt allowance instead.
	plain := seedAssignment(t, dbc, "", 70)
	tr2 := testutil.SeedTracker(t, dbc, u.ID, types.LocalRef(types.KindAssignment, plain.ID), nil)
	_, err = svc.Submit(dbc.Ctx, "acme", dbc.Tx, SubmitInput{
		UserID:    u.ID,
		TrackerID: tr2.ID,
		Files:     []FileInput{{Name: "work.zip", SizeBytes: 1, Reader: strings.NewReader("x")}},
	})
	if !apperr.Is(err, apperr.KindAttemptsExhausted) {
		t.Fatalf("expected attempts_exhausted, got %v", err)
	}
}

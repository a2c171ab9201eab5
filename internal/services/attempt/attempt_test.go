package attempt

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/learnsphere-backend/internal/clients/provider"
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
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

// fakeProvider stands in for the external platform so attempt accounting can
// be exercised without network calls.
type fakeProvider struct {
	scheduleID int64
	link       string
	attempts   []provider.Attempt

	scheduled int
	granted   int
}

func (f *fakeProvider) Schedule(ctx context.Context, req provider.ScheduleRequest) (*provider.ScheduleResult, error) {
	f.scheduled++
	return &provider.ScheduleResult{
		ScheduleID:   f.scheduleID,
		ScheduleLink: f.link,
		InviteID:     "invite-1",
	}, nil
}

func (f *fakeProvider) FetchResults(ctx context.Context, scheduleID int64, inviteID, userEmail string) ([]provider.Attempt, error) {
	return f.attempts, nil
}

func (f *fakeProvider) GrantExtraAttempt(ctx context.Context, scheduleID int64, userEmail string, delta int) error {
	f.granted++
	return nil
}

// newAttemptService wires the service against the test transaction with a
// fake provider on both gateway slots. Only the webhook path consults the
// registry; other tests pass nil.
func newAttemptService(t *testing.T, fake *fakeProvider, registry *tenant.Registry) Service {
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
		registry,
		provider.NewGateway(fake, fake),
		assessmentrepo.NewAssessmentRepo(nil, log),
		assessmentrepo.NewScheduleRepo(nil, log),
		assessmentrepo.NewAttemptResultRepo(nil, log),
		trackerrepo.NewTrackerRepo(nil, log),
		userrepo.NewUserRepo(nil, log),
		configresolver.NewService(log,
			assessmentrepo.NewConfigRepo(nil, log),
			catalogrepo.NewCatalogueRepo(nil, log),
		),
		catSvc,
		dispatcher,
		aggregator,
	)
}

func seedDefaultConfig(t *testing.T, dbc dbctx.Context, totalAttempts int, passPct float64) {
	t.Helper()
	c := &types.AssessmentConfig{
		ID:             uuid.New(),
		Name:           "tenant default",
		Scope:          types.ScopeTenantDefault,
		TotalAttempts:  totalAttempts,
		PassPercentage: passPct,
	}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(c).Error; err != nil {
		t.Fatalf("seed default config: %v", err)
	}
}

func TestStartReturnsExistingSchedule(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	fake := &fakeProvider{scheduleID: 4711, link: "https://provider.test/s/4711"}
	svc := newAttemptService(t, fake, nil)

	u := testutil.SeedUser(t, dbc)
	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	a := testutil.SeedAssessment(t, dbc, types.KindCourse, course.ID, types.AssessmentModule)
	seedDefaultConfig(t, dbc, 3, 60)

	in := StartInput{
		UserID:       u.ID,
		AssessmentID: a.ID,
		LearningRef:  types.LocalRef(types.KindCourse, course.ID),
	}
	first, err := svc.Start(dbc.Ctx, "acme", dbc.Tx, in)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.ScheduleLink != fake.link {
		t.Fatalf("schedule link = %q, want %q", first.ScheduleLink, fake.link)
	}
	if first.Tracker.AllowedAttempt != 3 || first.Tracker.AvailableAttempt != 3 {
		t.Fatalf("attempts = %d/%d, want 3/3",
			first.Tracker.AvailableAttempt, first.Tracker.AllowedAttempt)
	}

	second, err := svc.Start(dbc.Ctx, "acme", dbc.Tx, in)
	if err != nil {
		t.Fatalf("Start again: %v", err)
	}
	if second.Tracker.ID != first.Tracker.ID {
		t.Fatalf("restart created a new tracker: %s != %s", second.Tracker.ID, first.Tracker.ID)
	}
	if second.ScheduleLink != first.ScheduleLink {
		t.Fatalf("restart issued a new link: %q", second.ScheduleLink)
	}
	if fake.scheduled != 1 {
		t.Fatalf("provider scheduled %d times, want 1", fake.scheduled)
	}
}

func TestPullResultsAccounting(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	fake := &fakeProvider{scheduleID: 99, link: "https://provider.test/s/99"}
	svc := newAttemptService(t, fake, nil)

	u := testutil.SeedUser(t, dbc)
	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	a := testutil.SeedAssessment(t, dbc, types.KindCourse, course.ID, types.AssessmentModule)
	seedDefaultConfig(t, dbc, 3, 60)

	started, err := svc.Start(dbc.Ctx, "acme", dbc.Tx, StartInput{
		UserID:       u.ID,
		AssessmentID: a.ID,
		LearningRef:  types.LocalRef(types.KindCourse, course.ID),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	trackerID := started.Tracker.ID

	// One attempt still running, one failed below the 60% bar. Only the
	// finished attempt counts against the allowance.
	fake.attempts = []provider.Attempt{
		{Number: 2, Status: "In Progress", ScorePercentage: 0},
		{Number: 1, Status: "Completed", ScorePercentage: 40, TotalQuestions: 10, AnsweredQuestions: 9},
	}
	got, rows, err := svc.PullResults(dbc.Ctx, "acme", dbc.Tx, trackerID)
	if err != nil {
		t.Fatalf("PullResults: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stored %d attempt rows, want 1", len(rows))
	}
	if got.AvailableAttempt != 2 {
		t.Fatalf("available = %d, want 2", got.AvailableAttempt)
	}
	if got.Progress != 40 || got.IsPass || got.IsCompleted {
		t.Fatalf("tracker = %.2f pass=%v completed=%v, want 40 fail incomplete",
			got.Progress, got.IsPass, got.IsCompleted)
	}

	// Pulling the same results again must not double-charge the attempt.
	got, rows, err = svc.PullResults(dbc.Ctx, "acme", dbc.Tx, trackerID)
	if err != nil {
		t.Fatalf("PullResults repeat: %v", err)
	}
	if got.AvailableAttempt != 2 || len(rows) != 1 {
		t.Fatalf("repeat pull changed accounting: available %d, rows %d", got.AvailableAttempt, len(rows))
	}

	// A passing second attempt completes the tracker and keeps the best score.
	fake.attempts = append(fake.attempts,
		provider.Attempt{Number: 2, Status: "Completed", ScorePercentage: 85, TotalQuestions: 10, AnsweredQuestions: 10},
	)
	got, rows, err = svc.PullResults(dbc.Ctx, "acme", dbc.Tx, trackerID)
	if err != nil {
		t.Fatalf("PullResults pass: %v", err)
	}
	if got.AvailableAttempt != 1 || len(rows) != 2 {
		t.Fatalf("after pass: available %d rows %d, want 1 and 2", got.AvailableAttempt, len(rows))
	}
	if got.Progress != 85 || !got.IsPass || !got.IsCompleted {
		t.Fatalf("tracker = %.2f pass=%v completed=%v, want 85 pass completed",
			got.Progress, got.IsPass, got.IsCompleted)
	}
	if got.CompletionDate == nil {
		t.Fatal("completion date not stamped")
	}
}

func TestGrantReattempt(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	fake := &fakeProvider{scheduleID: 7, link: "https://provider.test/s/7"}
	svc := newAttemptService(t, fake, nil)

	u := testutil.SeedUser(t, dbc)
	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	a := testutil.SeedAssessment(t, dbc, types.KindCourse, course.ID, types.AssessmentModule)
	seedDefaultConfig(t, dbc, 1, 60)

	started, err := svc.Start(dbc.Ctx, "acme", dbc.Tx, StartInput{
		UserID:       u.ID,
		AssessmentID: a.ID,
		LearningRef:  types.LocalRef(types.KindCourse, course.ID),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	trackerID := started.Tracker.ID

	// Attempts are still available, so a grant is refused.
	if _, err := svc.GrantReattempt(dbc.Ctx, "acme", dbc.Tx, trackerID); !apperr.Is(err, apperr.KindConflictingState) {
		t.Fatalf("expected conflicting_state, got %v", err)
	}

	fake.attempts = []provider.Attempt{
		{Number: 1, Status: "Completed", ScorePercentage: 30},
	}
	got, _, err := svc.PullResults(dbc.Ctx, "acme", dbc.Tx, trackerID)
	if err != nil {
		t.Fatalf("PullResults: %v", err)
	}
	if got.AvailableAttempt != 0 {
		t.Fatalf("available = %d, want 0", got.AvailableAttempt)
	}

	got, err = svc.GrantReattempt(dbc.Ctx, "acme", dbc.Tx, trackerID)
	if err != nil {
		t.Fatalf("GrantReattempt: %v", err)
	}
	if got.AllowedAttempt != 2 || got.AvailableAttempt != 1 || got.ReattemptCount != 0 {
		t.Fatalf("after grant = allowed %d available %d reattempts %d, want 2/1/0",
			got.AllowedAttempt, got.AvailableAttempt, got.ReattemptCount)
	}
	if fake.granted != 1 {
		t.Fatalf("provider granted %d times, want 1", fake.granted)
	}

	// Consuming the granted attempt uses it up exactly once.
	fake.attempts = append(fake.attempts,
		provider.Attempt{Number: 2, Status: "Completed", ScorePercentage: 50},
	)
	got, rows, err := svc.PullResults(dbc.Ctx, "acme", dbc.Tx, trackerID)
	if err != nil {
		t.Fatalf("PullResults after grant: %v", err)
	}
	if got.AvailableAttempt != 0 || len(rows) != 2 {
		t.Fatalf("after consuming grant: available %d rows %d, want 0 and 2",
			got.AvailableAttempt, len(rows))
	}
}

func TestWebhookRoutingAndIdempotence(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	log := testutil.Logger(t)
	fake := &fakeProvider{scheduleID: 4242, link: "https://provider.test/s/4242"}
	registry := tenant.NewRegistry(log, map[string]*gorm.DB{"acme": dbc.Tx})
	svc := newAttemptService(t, fake, registry)

	u := testutil.SeedUser(t, dbc)
	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	a := testutil.SeedAssessment(t, dbc, types.KindCourse, course.ID, types.AssessmentModule)
	seedDefaultConfig(t, dbc, 3, 60)

	started, err := svc.Start(dbc.Ctx, "acme", dbc.Tx, StartInput{
		UserID:       u.ID,
		AssessmentID: a.ID,
		LearningRef:  types.LocalRef(types.KindCourse, course.ID),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	trackerID := started.Tracker.ID

	// The envelope stored at schedule time routes the push back to us.
	sched, err := assessmentrepo.NewScheduleRepo(nil, log).GetByTracker(dbc, trackerID)
	if err != nil || sched == nil {
		t.Fatalf("load schedule: %v", err)
	}

	req := WebhookRequest{
		UserEmailAddress: u.Email,
		Schedules: []WebhookSchedule{{
			ScheduleID:                 sched.ScheduleID,
			ExternalScheduleConfigArgs: string(sched.ConfigArgs),
			Attempts: []WebhookAttempt{
				{AttemptNumber: 1, Status: "Completed", ScorePercentage: 45, TotalQuestions: 10, AnsweredQuestions: 10},
			},
		}},
	}
	svc.IngestWebhook(dbc.Ctx, req)

	tr, err := trackerrepo.NewTrackerRepo(nil, log).GetByID(dbc, trackerID)
	if err != nil || tr == nil {
		t.Fatalf("reload tracker: %v", err)
	}
	if tr.Progress != 45 || tr.AvailableAttempt != 2 {
		t.Fatalf("after push: progress %.2f available %d, want 45 and 2",
			tr.Progress, tr.AvailableAttempt)
	}

	// Providers redeliver; the same payload twice must not change accounting.
	svc.IngestWebhook(dbc.Ctx, req)
	tr, err = trackerrepo.NewTrackerRepo(nil, log).GetByID(dbc, trackerID)
	if err != nil || tr == nil {
		t.Fatalf("reload tracker: %v", err)
	}
	if tr.Progress != 45 || tr.AvailableAttempt != 2 {
		t.Fatalf("redelivery changed accounting: progress %.2f available %d",
			tr.Progress, tr.AvailableAttempt)
	}

	var storedRows int64
	if err := dbc.Tx.Model(&types.AttemptResult{}).
		Where("schedule_row_id = ?", sched.ID).
		Count(&storedRows).Error; err != nil {
		t.Fatalf("count attempt rows: %v", err)
	}
	if storedRows != 1 {
		t.Fatalf("stored %d attempt rows, want 1", storedRows)
	}

	// An entry naming an unknown tenant is skipped without touching ours.
	unknown := provider.ConfigArgs{TenantID: "nobody", LearningKind: types.KindCourse, LearningID: course.ID}
	raw, err := unknown.Encode()
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	svc.IngestWebhook(dbc.Ctx, WebhookRequest{
		UserEmailAddress: u.Email,
		Schedules: []WebhookSchedule{{
			ScheduleID:                 sched.ScheduleID,
			ExternalScheduleConfigArgs: string(raw),
			Attempts: []WebhookAttempt{
				{AttemptNumber: 2, Status: "Completed", ScorePercentage: 99},
			},
		}},
	})
	tr, err = trackerrepo.NewTrackerRepo(nil, log).GetByID(dbc, trackerID)
	if err != nil || tr == nil {
		t.Fatalf("reload tracker: %v", err)
	}
	if tr.Progress != 45 {
		t.Fatalf("unknown tenant entry was ingested: progress %.2f", tr.Progress)
	}
}

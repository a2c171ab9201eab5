package progress

import (
	"testing"

	"github.com/google/uuid"

	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	gamrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/gamification"
	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/data/repos/testutil"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	catalogsvc "github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
)

// newAggregator wires a real aggregator against the test transaction. Only
// local catalog rows are used, so no remote client is needed.
func newAggregator(t *testing.T) Aggregator {
	t.Helper()
	log := testutil.Logger(t)
	dispatcher := gamification.NewDispatcher(log,
		gamrepo.NewMilestoneRepo(nil, log),
		gamrepo.NewBadgeRepo(nil, log),
		gamrepo.NewLeaderboardRepo(nil, log),
		gamrepo.NewBadgeActivityRepo(nil, log),
		gamrepo.NewExpertRepo(nil, log),
	)
	return NewAggregator(log,
		trackerrepo.NewTrackerRepo(nil, log),
		enrollmentrepo.NewEnrollmentRepo(nil, log),
		userrepo.NewUserRepo(nil, log),
		catalogsvc.NewService(log, catalogrepo.NewCatalogRepo(nil, log), nil),
		dispatcher,
		jobs.NewEnqueuer(log, jobsrepo.NewJobRunRepo(nil, log)),
	)
}

func getTracker(t *testing.T, dbc dbctx.Context, id uuid.UUID) *types.Tracker {
	t.Helper()
	log := testutil.Logger(t)
	tr, err := trackerrepo.NewTrackerRepo(nil, log).GetByID(dbc, id)
	if err != nil {
		t.Fatalf("get tracker: %v", err)
	}
	if tr == nil {
		t.Fatalf("tracker %s vanished", id)
	}
	return tr
}

func TestVideoCascadeThroughCourse(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	agg := newAggregator(t)

	u := testutil.SeedUser(t, dbc)
	course, modules, subs := testutil.SeedCourse(t, dbc, false, 2, 1)
	courseRef := types.LocalRef(types.KindCourse, course.ID)
	enr := testutil.SeedEnrollment(t, dbc, u.ID, courseRef)

	courseTracker := testutil.SeedTracker(t, dbc, u.ID, courseRef, nil)
	if err := dbc.Tx.Model(&types.Tracker{}).Where("id = ?", courseTracker.ID).
		Update("enrollment_id", enr.ID).Error; err != nil {
		t.Fatalf("link enrollment: %v", err)
	}
	m1 := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindCourseModule, modules[0].ID), &courseTracker.ID)
	m2 := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindCourseModule, modules[1].ID), &courseTracker.ID)
	s11 := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindSubmodule, subs[0][0].ID), &m1.ID)
	s12 := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindSubmodule, subs[0][1].ID), &m1.ID)
	s21 := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindSubmodule, subs[1][0].ID), &m2.ID)

	// Half the first video: 300 of 600 seconds.
	leaf, err := agg.UpdateVideoProgress(dbc.Ctx, "acme", dbc.Tx, s11.ID, 300)
	if err != nil {
		t.Fatalf("UpdateVideoProgress: %v", err)
	}
	if leaf.Progress != 50 || leaf.IsCompleted {
		t.Fatalf("leaf = %.2f completed=%v, want 50 incomplete", leaf.Progress, leaf.IsCompleted)
	}
	if got := getTracker(t, dbc, m1.ID); got.Progress != 25 {
		t.Fatalf("module progress = %.2f, want 25", got.Progress)
	}
	if got := getTracker(t, dbc, courseTracker.ID); got.Progress != 12.5 {
		t.Fatalf("course progress = %.2f, want 12.5", got.Progress)
	}

	// Enrollment moved to in_progress.
	var gotEnr types.Enrollment
	if err := dbc.Tx.Where("id = ?", enr.ID).First(&gotEnr).Error; err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if gotEnr.LearningStatus != types.LearningInProgress {
		t.Fatalf("learning status = %q, want in_progress", gotEnr.LearningStatus)
	}

	// A lower rewatch report never rolls progress back.
	leaf, err = agg.UpdateVideoProgress(dbc.Ctx, "acme", dbc.Tx, s11.ID, 100)
	if err != nil {
		t.Fatalf("UpdateVideoProgress rewind: %v", err)
	}
	if leaf.Progress != 50 {
		t.Fatalf("progress rolled back to %.2f", leaf.Progress)
	}

	// Finish everything in the first module.
	if _, err := agg.UpdateVideoProgress(dbc.Ctx, "acme", dbc.Tx, s11.ID, 600); err != nil {
		t.Fatalf("finish s11: %v", err)
	}
	if _, err := agg.UpdateVideoProgress(dbc.Ctx, "acme", dbc.Tx, s12.ID, 600); err != nil {
		t.Fatalf("finish s12: %v", err)
	}
	if got := getTracker(t, dbc, m1.ID); got.Progress != 100 || !got.IsCompleted {
		t.Fatalf("module 1 = %.2f completed=%v, want 100 completed", got.Progress, got.IsCompleted)
	}
	if got := getTracker(t, dbc, courseTracker.ID); got.Progress != 50 || got.IsCompleted {
		t.Fatalf("course = %.2f completed=%v, want 50 incomplete", got.Progress, got.IsCompleted)
	}

	// Finish the second module; the course completes and the learner is
	// notified.
	if _, err := agg.UpdateVideoProgress(dbc.Ctx, "acme", dbc.Tx, s21.ID, 600); err != nil {
		t.Fatalf("finish s21: %v", err)
	}
	got := getTracker(t, dbc, courseTracker.ID)
	if got.Progress != 100 || !got.IsCompleted {
		t.Fatalf("course = %.2f completed=%v, want 100 completed", got.Progress, got.IsCompleted)
	}
	if err := dbc.Tx.Where("id = ?", enr.ID).First(&gotEnr).Error; err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if gotEnr.LearningStatus != types.LearningCompleted {
		t.Fatalf("learning status = %q, want completed", gotEnr.LearningStatus)
	}

	var emailJobs int64
	if err := dbc.Tx.Model(&types.JobRun{}).
		Where("job_type = ? AND owner_user_id = ?", types.JobTypeEmailSend, u.ID).
		Count(&emailJobs).Error; err != nil {
		t.Fatalf("count email jobs: %v", err)
	}
	if emailJobs == 0 {
		t.Fatal("expected a completion email job")
	}
}

func TestContainerRollupAcrossCourses(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	agg := newAggregator(t)

	u := testutil.SeedUser(t, dbc)
	c1, m1s, s1 := testutil.SeedCourse(t, dbc, false, 1)
	c2, _, _ := testutil.SeedCourse(t, dbc, false, 1)

	lp := &types.LearningPath{
		ID:   uuid.New(),
		Name: "Path " + uuid.NewString()[:8],
		Code: "LP-" + uuid.NewString()[:8],
	}
	if err := dbc.Tx.Create(lp).Error; err != nil {
		t.Fatalf("seed lp: %v", err)
	}
	for i, cid := range []uuid.UUID{c1.ID, c2.ID} {
		link := &types.LPCourse{
			ID:             uuid.New(),
			LearningPathID: lp.ID,
			CourseID:       cid,
			Sequence:       i + 1,
			IsMandatory:    true,
		}
		if err := dbc.Tx.Create(link).Error; err != nil {
			t.Fatalf("seed lp course: %v", err)
		}
	}

	lpRef := types.LocalRef(types.KindLearningPath, lp.ID)
	lpTracker := testutil.SeedTracker(t, dbc, u.ID, lpRef, nil)

	c1Tracker := testutil.SeedTracker(t, dbc, u.ID, types.LocalRef(types.KindCourse, c1.ID), nil)
	m1Tracker := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindCourseModule, m1s[0].ID), &c1Tracker.ID)
	leafTracker := testutil.SeedTracker(t, dbc, u.ID,
		types.LocalRef(types.KindSubmodule, s1[0][0].ID), &m1Tracker.ID)

	if _, err := agg.UpdateVideoProgress(dbc.Ctx, "acme", dbc.Tx, leafTracker.ID, 600); err != nil {
		t.Fatalf("finish course 1: %v", err)
	}

	// Course 1 done; the path averages over both members even though course
	// 2 was never started.
	if got := getTracker(t, dbc, c1Tracker.ID); got.Progress != 100 || !got.IsCompleted {
		t.Fatalf("course 1 = %.2f completed=%v", got.Progress, got.IsCompleted)
	}
	if got := getTracker(t, dbc, lpTracker.ID); got.Progress != 50 || got.IsCompleted {
		t.Fatalf("learning path = %.2f completed=%v, want 50 incomplete", got.Progress, got.IsCompleted)
	}
}

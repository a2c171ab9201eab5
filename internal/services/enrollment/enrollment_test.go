package enrollment

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	calendarrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/calendar"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	gamrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/gamification"
	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/data/repos/testutil"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	catalogsvc "github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
)

func newEnrollmentService(t *testing.T) Service {
	t.Helper()
	log := testutil.Logger(t)
	dispatcher := gamification.NewDispatcher(log,
		gamrepo.NewMilestoneRepo(nil, log),
		gamrepo.NewBadgeRepo(nil, log),
		gamrepo.NewLeaderboardRepo(nil, log),
		gamrepo.NewBadgeActivityRepo(nil, log),
		gamrepo.NewExpertRepo(nil, log),
	)
	return NewService(log,
		enrollmentrepo.NewEnrollmentRepo(nil, log),
		userrepo.NewUserRepo(nil, log),
		userrepo.NewTenantSettingRepo(nil, log),
		catalogrepo.NewCatalogueRepo(nil, log),
		catalogrepo.NewCatalogRepo(nil, log),
		calendarrepo.NewCalendarRepo(nil, log),
		catalogsvc.NewService(log, catalogrepo.NewCatalogRepo(nil, log), nil),
		dispatcher,
		jobs.NewEnqueuer(log, jobsrepo.NewJobRunRepo(nil, log)),
	)
}

func seedSetting(t *testing.T, dbc dbctx.Context, selfEnroll bool) *types.TenantSetting {
	t.Helper()
	s := &types.TenantSetting{ID: uuid.New(), IsSelfEnrollEnabled: selfEnroll}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(s).Error; err != nil {
		t.Fatalf("seed tenant setting: %v", err)
	}
	return s
}

func setSelfEnroll(t *testing.T, dbc dbctx.Context, id uuid.UUID, on bool) {
	t.Helper()
	if err := dbc.Tx.Model(&types.TenantSetting{}).Where("id = ?", id).
		Update("is_self_enroll_enabled", on).Error; err != nil {
		t.Fatalf("toggle self enroll: %v", err)
	}
}

// seedSelfEnrollCatalogue lists ref in an unlocked self-enroll catalogue
// visible to userID.
func seedSelfEnrollCatalogue(t *testing.T, dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID) {
	t.Helper()
	c := &types.Catalogue{ID: uuid.New(), Name: "Catalogue " + uuid.NewString()[:8], IsSelfEnrollment: true}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(c).Error; err != nil {
		t.Fatalf("seed catalogue: %v", err)
	}
	ca := &types.CatalogueArtifact{
		ID:           uuid.New(),
		CatalogueID:  c.ID,
		ArtifactKind: ref.Kind,
		ArtifactID:   ref.ID,
		IsExternal:   ref.IsExternal,
	}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(ca).Error; err != nil {
		t.Fatalf("seed catalogue artifact: %v", err)
	}
	cu := &types.CatalogueUser{ID: uuid.New(), CatalogueID: c.ID, UserID: userID}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(cu).Error; err != nil {
		t.Fatalf("seed catalogue user: %v", err)
	}
}

func countJobs(t *testing.T, dbc dbctx.Context, jobType string, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	if err := dbc.Tx.Model(&types.JobRun{}).
		Where("job_type = ? AND owner_user_id = ?", jobType, userID).
		Count(&n).Error; err != nil {
		t.Fatalf("count %s jobs: %v", jobType, err)
	}
	return n
}

func TestSelfEnrollNeedsFlagAndCatalogue(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	svc := newEnrollmentService(t)

	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	ref := types.LocalRef(types.KindCourse, course.ID)
	setting := seedSetting(t, dbc, false)

	// A catalogue listing alone is not enough while the tenant flag is off.
	listedOnly := testutil.SeedUser(t, dbc)
	seedSelfEnrollCatalogue(t, dbc, ref, listedOnly.ID)
	e, err := svc.Enroll(dbc.Ctx, "acme", dbc.Tx, EnrollInput{
		ActorID: listedOnly.ID, UserID: listedOnly.ID, Ref: ref,
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if e.Action != types.ActionPending || e.IsAdmitted {
		t.Fatalf("flag off: action=%q admitted=%v, want pending", e.Action, e.IsAdmitted)
	}

	// The flag alone is not enough either.
	setSelfEnroll(t, dbc, setting.ID, true)
	unlisted := testutil.SeedUser(t, dbc)
	e, err = svc.Enroll(dbc.Ctx, "acme", dbc.Tx, EnrollInput{
		ActorID: unlisted.ID, UserID: unlisted.ID, Ref: ref,
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if e.Action != types.ActionPending || e.IsAdmitted {
		t.Fatalf("no catalogue: action=%q admitted=%v, want pending", e.Action, e.IsAdmitted)
	}

	// Flag plus catalogue listing admits immediately.
	both := testutil.SeedUser(t, dbc)
	seedSelfEnrollCatalogue(t, dbc, ref, both.ID)
	e, err = svc.Enroll(dbc.Ctx, "acme", dbc.Tx, EnrollInput{
		ActorID: both.ID, UserID: both.ID, Ref: ref,
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if e.Action != types.ActionApproved || !e.IsAdmitted {
		t.Fatalf("flag and catalogue: action=%q admitted=%v, want approved", e.Action, e.IsAdmitted)
	}
	if e.Reason != "Self enroll enabled." {
		t.Fatalf("reason = %q, want %q", e.Reason, "Self enroll enabled.")
	}
	if n := countJobs(t, dbc, types.JobTypeChatRegister, both.ID); n != 1 {
		t.Fatalf("chat jobs = %d, want 1", n)
	}
	if n := countJobs(t, dbc, types.JobTypeEmailSend, both.ID); n != 1 {
		t.Fatalf("approval email jobs = %d, want 1", n)
	}
}

func TestDecideRejectionNotifiesLearner(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	svc := newEnrollmentService(t)

	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	ref := types.LocalRef(types.KindCourse, course.ID)
	seedSetting(t, dbc, false)

	u := testutil.SeedUser(t, dbc)
	admin := testutil.SeedUser(t, dbc)
	pending, err := svc.Enroll(dbc.Ctx, "acme", dbc.Tx, EnrollInput{
		ActorID: u.ID, UserID: u.ID, Ref: ref,
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if pending.Action != types.ActionPending {
		t.Fatalf("action = %q, want pending", pending.Action)
	}

	rejected, err := svc.Decide(dbc.Ctx, "acme", dbc.Tx, DecideInput{
		EnrollmentID: pending.ID,
		ActorID:      admin.ID,
		Approve:      false,
		Reason:       "Cohort is full",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if rejected.Action != types.ActionRejected || rejected.IsAdmitted {
		t.Fatalf("action=%q admitted=%v, want rejected", rejected.Action, rejected.IsAdmitted)
	}

	// The learner hears about it and nothing else happens.
	var run types.JobRun
	if err := dbc.Tx.Where("job_type = ? AND owner_user_id = ?", types.JobTypeEmailSend, u.ID).
		First(&run).Error; err != nil {
		t.Fatalf("rejection email job missing: %v", err)
	}
	var payload jobs.EmailPayload
	if err := json.Unmarshal(run.Payload, &payload); err != nil {
		t.Fatalf("decode email payload: %v", err)
	}
	if payload.Template != "enrollment_rejected" {
		t.Fatalf("template = %q, want enrollment_rejected", payload.Template)
	}
	if payload.Vars["reason"] != "Cohort is full" {
		t.Fatalf("reason var = %q", payload.Vars["reason"])
	}
	if n := countJobs(t, dbc, types.JobTypeChatRegister, u.ID); n != 0 {
		t.Fatalf("rejection enqueued %d chat jobs", n)
	}
	if n := countJobs(t, dbc, types.JobTypeCalendarSync, u.ID); n != 0 {
		t.Fatalf("rejection enqueued %d calendar jobs", n)
	}
}

func TestChatRegistrationOnlyForCourses(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	svc := newEnrollmentService(t)

	seedSetting(t, dbc, false)
	admin := testutil.SeedUser(t, dbc)
	u := testutil.SeedUser(t, dbc)

	lp := &types.LearningPath{
		ID:   uuid.New(),
		Name: "Path " + uuid.NewString()[:8],
		Code: "LP-" + uuid.NewString()[:8],
	}
	if err := dbc.Tx.Create(lp).Error; err != nil {
		t.Fatalf("seed lp: %v", err)
	}

	e, err := svc.Enroll(dbc.Ctx, "acme", dbc.Tx, EnrollInput{
		ActorID:      admin.ID,
		ActorIsAdmin: true,
		UserID:       u.ID,
		Ref:          types.LocalRef(types.KindLearningPath, lp.ID),
	})
	if err != nil {
		t.Fatalf("Enroll lp: %v", err)
	}
	if !e.IsAdmitted {
		t.Fatalf("admin enrollment not admitted")
	}
	if n := countJobs(t, dbc, types.JobTypeChatRegister, u.ID); n != 0 {
		t.Fatalf("lp enrollment enqueued %d chat jobs, want 0", n)
	}
	if n := countJobs(t, dbc, types.JobTypeCalendarSync, u.ID); n != 1 {
		t.Fatalf("lp enrollment enqueued %d calendar jobs, want 1", n)
	}

	course, _, _ := testutil.SeedCourse(t, dbc, false, 1)
	if _, err := svc.Enroll(dbc.Ctx, "acme", dbc.Tx, EnrollInput{
		ActorID:      admin.ID,
		ActorIsAdmin: true,
		UserID:       u.ID,
		Ref:          types.LocalRef(types.KindCourse, course.ID),
	}); err != nil {
		t.Fatalf("Enroll course: %v", err)
	}
	if n := countJobs(t, dbc, types.JobTypeChatRegister, u.ID); n != 1 {
		t.Fatalf("course enrollment enqueued %d chat jobs, want 1", n)
	}
}

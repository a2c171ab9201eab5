package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
)

func create(t *testing.T, dbc dbctx.Context, v interface{}) {
	t.Helper()
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(v).Error; err != nil {
		t.Fatalf("seed %T: %v", v, err)
	}
}

func SeedUser(t *testing.T, dbc dbctx.Context) *types.User {
	t.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("learner-%s@example.test", uuid.NewString()[:8]),
		FirstName: "Test",
		LastName:  "Learner",
		Role:      "learner",
		IsActive:  true,
	}
	create(t, dbc, u)
	return u
}

// SeedCourse builds a course with the given module layout. moduleSubmodules
// holds one entry per module, the number of video submodules in it.
func SeedCourse(t *testing.T, dbc dbctx.Context, sequential bool, moduleSubmodules ...int) (*types.Course, []*types.CourseModule, [][]*types.Submodule) {
	t.Helper()
	c := &types.Course{
		ID:                       uuid.New(),
		Name:                     "Course " + uuid.NewString()[:8],
		Code:                     "C-" + uuid.NewString()[:8],
		Proficiency:              types.ProficiencyBasic,
		IsDependenciesSequential: sequential,
	}
	create(t, dbc, c)

	var modules []*types.CourseModule
	var subs [][]*types.Submodule
	for mi, n := range moduleSubmodules {
		m := &types.CourseModule{
			ID:          uuid.New(),
			CourseID:    c.ID,
			Name:        fmt.Sprintf("Module %d", mi+1),
			Sequence:    mi + 1,
			IsMandatory: true,
		}
		create(t, dbc, m)
		modules = append(modules, m)

		var ms []*types.Submodule
		for si := 0; si < n; si++ {
			s := &types.Submodule{
				ID:             uuid.New(),
				CourseModuleID: m.ID,
				Name:           fmt.Sprintf("Submodule %d.%d", mi+1, si+1),
				Type:           types.SubmoduleVideo,
				Sequence:       si + 1,
				IsMandatory:    true,
				DurationSecs:   600,
				EvaluationType: types.EvaluationNonEvaluated,
			}
			create(t, dbc, s)
			ms = append(ms, s)
		}
		subs = append(subs, ms)
	}
	return c, modules, subs
}

func SeedEnrollment(t *testing.T, dbc dbctx.Context, userID uuid.UUID, ref types.ArtifactRef) *types.Enrollment {
	t.Helper()
	now := time.Now()
	e := &types.Enrollment{
		ID:             uuid.New(),
		UserID:         &userID,
		ArtifactKind:   ref.Kind,
		ArtifactID:     ref.ID,
		IsExternal:     ref.IsExternal,
		ApprovalType:   types.ApprovalTenantAdmin,
		Action:         types.ActionApproved,
		IsAdmitted:     true,
		LearningStatus: types.LearningNotStarted,
		StartDate:      &now,
		ActionDate:     &now,
	}
	create(t, dbc, e)
	return e
}

func SeedTracker(t *testing.T, dbc dbctx.Context, userID uuid.UUID, ref types.ArtifactRef, parentID *uuid.UUID) *types.Tracker {
	t.Helper()
	tr := &types.Tracker{
		ID:           uuid.New(),
		UserID:       userID,
		ArtifactKind: ref.Kind,
		ArtifactID:   ref.ID,
		IsExternal:   ref.IsExternal,
		ParentID:     parentID,
	}
	create(t, dbc, tr)
	return tr
}

func SeedAssessment(t *testing.T, dbc dbctx.Context, ownerKind types.ArtifactKind, ownerID uuid.UUID, kind types.AssessmentKind) *types.Assessment {
	t.Helper()
	a := &types.Assessment{
		ID:           uuid.New(),
		Name:         "Assessment " + uuid.NewString()[:8],
		OwnerKind:    ownerKind,
		OwnerID:      ownerID,
		Kind:         kind,
		ProviderType: types.ProviderYaksha,
		ProviderRef:  uuid.NewString(),
		Sequence:     1,
		IsMandatory:  true,
	}
	create(t, dbc, a)
	return a
}

func SeedMilestone(t *testing.T, dbc dbctx.Context, name types.MilestoneName, points int) *types.Milestone {
	t.Helper()
	m := &types.Milestone{ID: uuid.New(), Name: name, Points: points}
	create(t, dbc, m)
	return m
}

func SeedBadge(t *testing.T, dbc dbctx.Context, category types.BadgeCategory, badgeType types.BadgeType, proficiency types.Proficiency, points int, from, to float64) *types.Badge {
	t.Helper()
	b := &types.Badge{
		ID:          uuid.New(),
		Category:    category,
		Type:        badgeType,
		Proficiency: proficiency,
		Points:      points,
		FromRange:   from,
		ToRange:     to,
	}
	create(t, dbc, b)
	return b
}

package configresolver

import (
	"testing"

	"github.com/google/uuid"

	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/data/repos/testutil"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
)

func seedAssessmentConfig(t *testing.T, dbc dbctx.Context, scope types.ConfigScope, ref *types.ArtifactRef, passPct float64) *types.AssessmentConfig {
	t.Helper()
	c := &types.AssessmentConfig{
		ID:             uuid.New(),
		Name:           string(scope),
		Scope:          scope,
		TotalAttempts:  3,
		PassPercentage: passPct,
	}
	if ref != nil {
		c.ArtifactKind = ref.Kind
		c.ArtifactID = &ref.ID
	}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(c).Error; err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return c
}

func TestResolveAssessmentOrder(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	log := testutil.Logger(t)

	svc := NewService(log,
		assessmentrepo.NewConfigRepo(nil, log),
		catalogrepo.NewCatalogueRepo(nil, log),
	)

	ref := types.ArtifactRef{Kind: types.KindAssessment, ID: uuid.New()}
	userID := uuid.New()

	// Nothing configured yet.
	if _, err := svc.ResolveAssessment(dbc, ref, userID, nil); !apperr.Is(err, apperr.KindConfigMissing) {
		t.Fatalf("expected config_missing, got %v", err)
	}

	seedAssessmentConfig(t, dbc, types.ScopeTenantDefault, nil, 50)
	got, err := svc.ResolveAssessment(dbc, ref, userID, nil)
	if err != nil {
		t.Fatalf("resolve with default: %v", err)
	}
	if got.Scope != types.ScopeTenantDefault {
		t.Fatalf("resolved %q, want tenant default", got.Scope)
	}

	seedAssessmentConfig(t, dbc, types.ScopeArtifactAttached, &ref, 60)
	got, err = svc.ResolveAssessment(dbc, ref, userID, nil)
	if err != nil {
		t.Fatalf("resolve with attached: %v", err)
	}
	if got.Scope != types.ScopeArtifactAttached {
		t.Fatalf("resolved %q, want artifact attached", got.Scope)
	}

	seedAssessmentConfig(t, dbc, types.ScopeExactArtifact, &ref, 70)
	got, err = svc.ResolveAssessment(dbc, ref, userID, nil)
	if err != nil {
		t.Fatalf("resolve with exact: %v", err)
	}
	if got.Scope != types.ScopeExactArtifact {
		t.Fatalf("resolved %q, want exact artifact", got.Scope)
	}
	if got.PassPercentage != 70 {
		t.Fatalf("pass percentage = %v, want 70", got.PassPercentage)
	}

	// Other artifacts do not see the artifact-scoped rows.
	other := types.ArtifactRef{Kind: types.KindAssessment, ID: uuid.New()}
	got, err = svc.ResolveAssessment(dbc, other, userID, nil)
	if err != nil {
		t.Fatalf("resolve other: %v", err)
	}
	if got.Scope != types.ScopeTenantDefault {
		t.Fatalf("other artifact resolved %q, want tenant default", got.Scope)
	}
}

func TestResolveSubmissionFallsThrough(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Tx(t, db)
	log := testutil.Logger(t)

	svc := NewService(log,
		assessmentrepo.NewConfigRepo(nil, log),
		catalogrepo.NewCatalogueRepo(nil, log),
	)

	ref := types.ArtifactRef{Kind: types.KindAssignment, ID: uuid.New()}
	if _, err := svc.ResolveSubmission(dbc, ref, uuid.New(), nil); !apperr.Is(err, apperr.KindConfigMissing) {
		t.Fatalf("expected config_missing, got %v", err)
	}

	def := &types.SubmissionConfig{
		ID:                uuid.New(),
		Scope:             types.ScopeTenantDefault,
		MaxFilesAllowed:   2,
		ExtensionsAllowed: "pdf,zip",
		TotalAttempts:     1,
		PassPercentage:    50,
	}
	if err := dbc.Tx.WithContext(dbc.Ctx).Create(def).Error; err != nil {
		t.Fatalf("seed submission config: %v", err)
	}

	got, err := svc.ResolveSubmission(dbc, ref, uuid.New(), nil)
	if err != nil {
		t.Fatalf("resolve submission: %v", err)
	}
	if got.MaxFilesAllowed != 2 {
		t.Fatalf("max files = %d, want 2", got.MaxFilesAllowed)
	}
}

// Package learning starts and inspects progress trackers. It enforces
// admission for top-level artifacts and the ordered unlock rules for nested
// ones, and provisions lab sessions for tool-backed assignments.
package learning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/learnsphere-backend/internal/clients/mml"
	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/configresolver"
	"github.com/learnsphere/learnsphere-backend/internal/services/unlock"
)

type StartInput struct {
	UserID          uuid.UUID
	Ref             types.ArtifactRef
	ParentTrackerID *uuid.UUID
}

// ChildState is the learner-relative view of one child of a parent artifact,
// with its lock decision already applied.
type ChildState struct {
	Ref         types.ArtifactRef
	Class       unlock.Class
	Sequence    int
	IsMandatory bool
	IsFinal     bool
	IsPractice  bool
	Tracker     *types.Tracker
	Locked      bool
}

type Service interface {
	// Start creates (or returns) the learner's tracker for an artifact.
	// Top-level artifacts require an admitted enrollment; nested ones must be
	// unlocked and started under their parent tracker.
	Start(ctx context.Context, db *gorm.DB, in StartInput) (*types.Tracker, error)

	// State returns every child of the parent with tracker and lock state.
	State(ctx context.Context, db *gorm.DB, userID uuid.UUID, parentTracker *types.Tracker) ([]ChildState, error)

	// Get returns one tracker, owner-checked.
	Get(ctx context.Context, db *gorm.DB, userID, trackerID uuid.UUID) (*types.Tracker, error)

	// StartLab provisions a virtual machine for a tool-backed assignment the
	// learner has a tracker for.
	StartLab(ctx context.Context, db *gorm.DB, userID, trackerID uuid.UUID) (*mml.Lab, error)
}

type service struct {
	log         *logger.Logger
	trackers    trackerrepo.TrackerRepo
	enrollments enrollmentrepo.EnrollmentRepo
	assessments assessmentrepo.AssessmentRepo
	users       userrepo.UserRepo
	configs     configresolver.Service
	catalog     catalog.Service
	labs        mml.Client
}

func NewService(
	log *logger.Logger,
	trackers trackerrepo.TrackerRepo,
	enrollments enrollmentrepo.EnrollmentRepo,
	assessments assessmentrepo.AssessmentRepo,
	users userrepo.UserRepo,
	configs configresolver.Service,
	catalogSvc catalog.Service,
	labs mml.Client,
) Service {
	return &service{
		log:         log.With("service", "LearningService"),
		trackers:    trackers,
		enrollments: enrollments,
		assessments: assessments,
		users:       users,
		configs:     configs,
		catalog:     catalogSvc,
		labs:        labs,
	}
}

func (s *service) Start(ctx context.Context, db *gorm.DB, in StartInput) (*types.Tracker, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	meta, err := s.catalog.GetArtifact(read, in.Ref)
	if err != nil {
		return nil, err
	}

	if types.RequiredParentKind(in.Ref.Kind) == "" {
		return s.startTopLevel(read, in, meta)
	}
	return s.startNested(read, in)
}

func (s *service) startTopLevel(dbc dbctx.Context, in StartInput, meta *catalog.Artifact) (*types.Tracker, error) {
	groupIDs, err := s.users.GroupIDsForUser(dbc, in.UserID)
	if err != nil {
		return nil, err
	}
	e, err := s.enrollments.FindForUserOrGroups(dbc, in.UserID, groupIDs, in.Ref)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.IsAdmitted {
		return nil, apperr.New(apperr.KindNotAdmitted, "learner is not admitted to this artifact")
	}

	now := time.Now()
	if meta.StartDate != nil && now.Before(*meta.StartDate) {
		return nil, apperr.New(apperr.KindLocked, "artifact has not opened yet")
	}
	end := meta.EndDate
	if e.EndDate != nil {
		end = e.EndDate
	}
	if end != nil && now.After(*end) {
		return nil, apperr.New(apperr.KindLocked, "artifact window has closed")
	}

	t := &types.Tracker{
		UserID:       in.UserID,
		ArtifactKind: in.Ref.Kind,
		ArtifactID:   in.Ref.ID,
		IsExternal:   in.Ref.IsExternal,
		EnrollmentID: &e.ID,
	}
	if err := s.initAttempts(dbc, in, meta, t); err != nil {
		return nil, err
	}
	tracker, created, err := s.trackers.Upsert(dbc, t)
	if err != nil {
		return nil, err
	}
	if created && e.LearningStatus.Rank() < types.LearningStarted.Rank() {
		if err := s.enrollments.UpdateFields(dbc, e.ID, map[string]interface{}{
			"learning_status": types.LearningStarted,
		}); err != nil {
			return nil, err
		}
	}
	if err := s.trackers.UpdateFields(dbc, tracker.ID, map[string]interface{}{
		"last_accessed_on": now,
	}); err != nil {
		return nil, err
	}
	return tracker, nil
}

func (s *service) startNested(dbc dbctx.Context, in StartInput) (*types.Tracker, error) {
	if in.ParentTrackerID == nil {
		return nil, apperr.Newf(apperr.KindValidation,
			"starting a %s requires its parent tracker", in.Ref.Kind)
	}
	parent, err := s.trackers.GetByID(dbc, *in.ParentTrackerID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFound("parent tracker")
	}
	if parent.UserID != in.UserID {
		return nil, apperr.Validation("parent tracker belongs to another learner")
	}

	states, err := s.State(dbc.Ctx, dbc.Tx, in.UserID, parent)
	if err != nil {
		return nil, err
	}
	found := false
	for _, st := range states {
		if st.Ref.Kind != in.Ref.Kind || st.Ref.ID != in.Ref.ID {
			continue
		}
		found = true
		if st.Locked {
			return nil, apperr.New(apperr.KindLocked, "item is locked by its dependencies")
		}
		break
	}
	if !found {
		return nil, apperr.NotFound("child artifact")
	}

	tracker, _, err := s.trackers.Upsert(dbc, &types.Tracker{
		UserID:       in.UserID,
		ArtifactKind: in.Ref.Kind,
		ArtifactID:   in.Ref.ID,
		IsExternal:   in.Ref.IsExternal,
		ParentID:     &parent.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.trackers.UpdateFields(dbc, tracker.ID, map[string]interface{}{
		"last_accessed_on": time.Now(),
	}); err != nil {
		return nil, err
	}
	return tracker, nil
}

// initAttempts seeds attempt counters for submission-capable artifacts.
func (s *service) initAttempts(dbc dbctx.Context, in StartInput, meta *catalog.Artifact, t *types.Tracker) error {
	if in.Ref.Kind != types.KindAssignment {
		return nil
	}
	groupIDs, err := s.users.GroupIDsForUser(dbc, in.UserID)
	if err != nil {
		return err
	}
	cfg, err := s.configs.ResolveSubmission(dbc, in.Ref, in.UserID, groupIDs)
	if err != nil {
		return err
	}
	allowed := cfg.TotalAttempts
	if meta.AllowedAttempts != nil {
		allowed = *meta.AllowedAttempts
	}
	t.AllowedAttempt = allowed
	t.AvailableAttempt = allowed
	return nil
}

func (s *service) State(ctx context.Context, db *gorm.DB, userID uuid.UUID, parentTracker *types.Tracker) ([]ChildState, error) {
	dbc := dbctx.Context{Ctx: ctx, Tx: db}
	parentRef := parentTracker.Ref()

	meta, err := s.catalog.GetArtifact(dbc, parentRef)
	if err != nil {
		return nil, err
	}
	children, err := s.catalog.ListChildren(dbc, parentRef, unitChildKind(parentRef.Kind))
	if err != nil {
		return nil, err
	}
	assessRows, err := s.assessments.ListByOwner(dbc, parentRef.Kind, parentRef.ID)
	if err != nil {
		return nil, err
	}

	trackerByRef := map[types.ArtifactRef]*types.Tracker{}
	byKind := map[types.ArtifactKind][]uuid.UUID{}
	for _, c := range children {
		byKind[c.Ref.Kind] = append(byKind[c.Ref.Kind], c.Ref.ID)
	}
	for _, a := range assessRows {
		byKind[types.KindAssessment] = append(byKind[types.KindAssessment], a.ID)
	}
	for kind, ids := range byKind {
		rows, err := s.trackers.ListByUserKindIDs(dbc, userID, kind, ids)
		if err != nil {
			return nil, err
		}
		for _, t := range rows {
			trackerByRef[types.ArtifactRef{Kind: t.ArtifactKind, ID: t.ArtifactID}] = t
		}
	}
	lookup := func(ref types.ArtifactRef) *types.Tracker {
		return trackerByRef[types.ArtifactRef{Kind: ref.Kind, ID: ref.ID}]
	}

	parentState := unlock.Parent{
		IsCompleted:  parentTracker.IsCompleted,
		IsSequential: meta.IsDependenciesSequential,
	}

	classOf := func(kind types.ArtifactKind) unlock.Class {
		if kind == types.KindAssignment {
			return unlock.ClassAssignment
		}
		return unlock.ClassUnit
	}

	childMeta := map[types.ArtifactRef]*catalog.Artifact{}
	for _, c := range children {
		cm, err := s.catalog.GetArtifact(dbc, c.Ref)
		if err != nil {
			return nil, err
		}
		childMeta[c.Ref] = cm
	}

	var siblings []unlock.Sibling
	for _, c := range children {
		t := lookup(c.Ref)
		cm := childMeta[c.Ref]
		siblings = append(siblings, unlock.Sibling{
			Class:          classOf(c.Ref.Kind),
			Sequence:       c.Sequence,
			EvaluationType: cm.EvaluationType,
			HasTracker:     t != nil,
			IsCompleted:    t != nil && t.IsCompleted,
		})
	}
	for _, a := range assessRows {
		t := lookup(types.ArtifactRef{Kind: types.KindAssessment, ID: a.ID})
		siblings = append(siblings, unlock.Sibling{
			Class:       unlock.ClassAssessment,
			Sequence:    a.Sequence,
			IsPractice:  a.IsPractice,
			HasTracker:  t != nil,
			IsCompleted: t != nil && t.IsCompleted,
		})
	}

	now := time.Now()
	out := make([]ChildState, 0, len(children)+len(assessRows))
	for _, c := range children {
		t := lookup(c.Ref)
		cm := childMeta[c.Ref]
		item := unlock.Item{
			Class:          classOf(c.Ref.Kind),
			Sequence:       c.Sequence,
			EvaluationType: cm.EvaluationType,
			IsCompleted:    t != nil && t.IsCompleted,
			StartDate:      cm.StartDate,
			EndDate:        cm.EndDate,
			IsLockActive:   c.IsLockActive,
			UnlockDate:     c.UnlockDate,
		}
		out = append(out, ChildState{
			Ref:         c.Ref,
			Class:       item.Class,
			Sequence:    c.Sequence,
			IsMandatory: c.IsMandatory,
			Tracker:     t,
			Locked:      unlock.Locked(now, item, parentState, siblings),
		})
	}
	for _, a := range assessRows {
		ref := types.ArtifactRef{Kind: types.KindAssessment, ID: a.ID}
		t := lookup(ref)
		item := unlock.Item{
			Class:       unlock.ClassAssessment,
			Sequence:    a.Sequence,
			IsFinal:     a.Kind == types.AssessmentFinal,
			IsPractice:  a.IsPractice,
			IsCompleted: t != nil && t.IsCompleted,
		}
		out = append(out, ChildState{
			Ref:         ref,
			Class:       unlock.ClassAssessment,
			Sequence:    a.Sequence,
			IsMandatory: a.IsMandatory,
			IsFinal:     item.IsFinal,
			IsPractice:  a.IsPractice,
			Tracker:     t,
			Locked:      unlock.Locked(now, item, parentState, siblings),
		})
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, db *gorm.DB, userID, trackerID uuid.UUID) (*types.Tracker, error) {
	t, err := s.trackers.GetByID(dbctx.Context{Ctx: ctx, Tx: db}, trackerID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, apperr.NotFound("tracker")
	}
	return t, nil
}

func (s *service) StartLab(ctx context.Context, db *gorm.DB, userID, trackerID uuid.UUID) (*mml.Lab, error) {
	dbc := dbctx.Context{Ctx: ctx, Tx: db}
	t, err := s.trackers.GetByID(dbc, trackerID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, apperr.NotFound("tracker")
	}
	meta, err := s.catalog.GetArtifact(dbc, t.Ref())
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	lab, err := s.labs.ProvisionLab(ctx, u.Email, meta.VMName, meta.SkuID)
	if err != nil {
		return nil, err
	}
	if err := s.trackers.UpdateFields(dbc, t.ID, map[string]interface{}{
		"last_accessed_on": time.Now(),
	}); err != nil {
		return nil, err
	}
	return lab, nil
}

// unitChildKind maps a parent to the kind of its structural children; the
// empty kind means members span kinds (skill ontologies).
func unitChildKind(kind types.ArtifactKind) types.ArtifactKind {
	switch kind {
	case types.KindCourse:
		return types.KindCourseModule
	case types.KindCourseModule:
		return types.KindSubmodule
	case types.KindLearningPath, types.KindSkillTraveller:
		return types.KindCourse
	case types.KindAdvancedLearningPath:
		return types.KindLearningPath
	case types.KindAssignmentGroup:
		return types.KindAssignment
	}
	return ""
}

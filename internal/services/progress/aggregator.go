// Package progress recomputes ancestor trackers whenever a leaf moves. A
// leaf transition enters here, parents re-average, and completion
// transitions fan out to gamification, enrollment status and notification
// jobs. Remote member lists are gathered before the transaction opens;
// nothing inside the transaction touches the network.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	trackerrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/tracker"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	catalogsvc "github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
)

type Aggregator interface {
	// UpdateVideoProgress applies a watched-duration report to a video
	// submodule tracker and cascades upward.
	UpdateVideoProgress(ctx context.Context, tenant string, db *gorm.DB, trackerID uuid.UUID, completedSecs int) (*types.Tracker, error)

	// CompleteLeaf marks a non-video leaf complete (file, custom URL, SCORM,
	// accepted submission) and cascades.
	CompleteLeaf(ctx context.Context, tenant string, db *gorm.DB, trackerID uuid.UUID) (*types.Tracker, error)

	// Plan gathers everything the cascade will need for this leaf, remote
	// lookups included. Call before opening the transaction.
	Plan(ctx context.Context, db *gorm.DB, leaf *types.Tracker) (*CascadePlan, error)

	// Apply runs the cascade inside the caller's transaction. The leaf row
	// must already hold its new progress state.
	Apply(dbc dbctx.Context, tenant string, plan *CascadePlan, leaf *types.Tracker) error

	// RefreshContainers recomputes every container tracker the user holds,
	// regardless of what changed. Used when container membership itself may
	// have moved underneath stored progress.
	RefreshContainers(ctx context.Context, tenant string, db *gorm.DB, userID uuid.UUID) error
}

// containerInfo is one of the learner's container trackers with its member
// list resolved ahead of the transaction.
type containerInfo struct {
	tracker *types.Tracker
	meta    *catalogsvc.Artifact
	members []types.ArtifactRef
}

// CascadePlan is the pre-gathered input to one aggregation pass.
type CascadePlan struct {
	user *types.User

	// Submodule-chain data; nil when the leaf is not a submodule.
	moduleTracker  *types.Tracker
	courseTracker  *types.Tracker
	submoduleCount int
	moduleCount    int
	courseMeta     *catalogsvc.Artifact
	videoCount     int

	containers []containerInfo
}

type aggregator struct {
	log         *logger.Logger
	trackers    trackerrepo.TrackerRepo
	enrollments enrollmentrepo.EnrollmentRepo
	users       userrepo.UserRepo
	catalog     catalogsvc.Service
	dispatcher  gamification.Dispatcher
	enqueue     jobs.Enqueuer
}

func NewAggregator(
	log *logger.Logger,
	trackers trackerrepo.TrackerRepo,
	enrollments enrollmentrepo.EnrollmentRepo,
	users userrepo.UserRepo,
	catalog catalogsvc.Service,
	dispatcher gamification.Dispatcher,
	enqueue jobs.Enqueuer,
) Aggregator {
	return &aggregator{
		log:         log.With("service", "ProgressAggregator"),
		trackers:    trackers,
		enrollments: enrollments,
		users:       users,
		catalog:     catalog,
		dispatcher:  dispatcher,
		enqueue:     enqueue,
	}
}

func (a *aggregator) UpdateVideoProgress(ctx context.Context, tenant string, db *gorm.DB, trackerID uuid.UUID, completedSecs int) (*types.Tracker, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	leaf, err := a.trackers.GetByID(read, trackerID)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, apperr.NotFound("tracker")
	}
	if leaf.ArtifactKind != types.KindSubmodule {
		return nil, apperr.Validation("duration updates apply to submodule trackers only")
	}

	meta, err := a.catalog.GetArtifact(read, leaf.Ref())
	if err != nil {
		return nil, err
	}
	if meta.Type != types.SubmoduleVideo {
		return nil, apperr.Validation("duration updates apply to video submodules only")
	}
	if meta.DurationSecs <= 0 {
		return nil, apperr.Validation("video submodule has no known duration")
	}

	plan, err := a.Plan(ctx, db, leaf)
	if err != nil {
		return nil, err
	}

	var updated *types.Tracker
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := a.trackers.LockByID(dbc, leaf.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("tracker")
		}

		newDuration := locked.CompletedDuration
		if completedSecs > newDuration {
			newDuration = completedSecs
		}
		proposed := Round2(float64(newDuration) / float64(meta.DurationSecs) * 100)
		newProgress := Monotonic(locked.Progress, proposed)
		justCompleted := !locked.IsCompleted && newProgress >= 100

		now := time.Now()
		updates := map[string]interface{}{
			"completed_duration": newDuration,
			"progress":           newProgress,
			"last_accessed_on":   now,
		}
		if justCompleted {
			updates["is_completed"] = true
			updates["completion_date"] = now
		}
		if err := a.trackers.UpdateFields(dbc, locked.ID, updates); err != nil {
			return err
		}
		locked.CompletedDuration = newDuration
		locked.Progress = newProgress
		if justCompleted {
			locked.IsCompleted = true
			locked.CompletionDate = &now
		}

		if justCompleted && plan.courseTracker != nil && plan.courseMeta != nil {
			if err := a.dispatcher.AwardVideoBadge(dbc, locked.UserID, plan.courseMeta.Proficiency,
				plan.courseTracker.Ref(), locked.ID, plan.videoCount); err != nil {
				return err
			}
		}

		if err := a.Apply(dbc, tenant, plan, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (a *aggregator) CompleteLeaf(ctx context.Context, tenant string, db *gorm.DB, trackerID uuid.UUID) (*types.Tracker, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	leaf, err := a.trackers.GetByID(read, trackerID)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, apperr.NotFound("tracker")
	}

	plan, err := a.Plan(ctx, db, leaf)
	if err != nil {
		return nil, err
	}

	var updated *types.Tracker
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := a.trackers.LockByID(dbc, leaf.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.NotFound("tracker")
		}
		now := time.Now()
		if !locked.IsCompleted {
			if err := a.trackers.UpdateFields(dbc, locked.ID, map[string]interface{}{
				"progress":         100.0,
				"is_completed":     true,
				"completion_date":  now,
				"last_accessed_on": now,
			}); err != nil {
				return err
			}
			locked.Progress = 100
			locked.IsCompleted = true
			locked.CompletionDate = &now
		}
		if err := a.Apply(dbc, tenant, plan, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Plan walks the leaf's ancestry and the learner's container trackers and
// resolves every member list and metadata lookup the cascade may need.
func (a *aggregator) Plan(ctx context.Context, db *gorm.DB, leaf *types.Tracker) (*CascadePlan, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	plan := &CascadePlan{}

	u, err := a.users.GetByID(read, leaf.UserID)
	if err != nil {
		return nil, err
	}
	plan.user = u

	if leaf.ArtifactKind == types.KindSubmodule && leaf.ParentID != nil {
		moduleTracker, err := a.trackers.GetByID(read, *leaf.ParentID)
		if err != nil {
			return nil, err
		}
		if moduleTracker == nil {
			return nil, apperr.NotFound("module tracker")
		}
		plan.moduleTracker = moduleTracker

		subs, err := a.catalog.ListChildren(read, moduleTracker.Ref(), types.KindSubmodule)
		if err != nil {
			return nil, err
		}
		plan.submoduleCount = len(subs)

		if moduleTracker.ParentID != nil {
			courseTracker, err := a.trackers.GetByID(read, *moduleTracker.ParentID)
			if err != nil {
				return nil, err
			}
			if courseTracker == nil {
				return nil, apperr.NotFound("course tracker")
			}
			plan.courseTracker = courseTracker

			modules, err := a.catalog.ListChildren(read, courseTracker.Ref(), types.KindCourseModule)
			if err != nil {
				return nil, err
			}
			plan.moduleCount = len(modules)

			meta, err := a.catalog.GetArtifact(read, courseTracker.Ref())
			if err != nil {
				return nil, err
			}
			plan.courseMeta = meta

			videos, err := a.catalog.CountVideoSubmodules(read, courseTracker.Ref())
			if err != nil {
				return nil, err
			}
			plan.videoCount = videos
		}
	}

	// Containers recompute in dependency order; the slice order below is the
	// order Apply walks them.
	for _, kind := range []types.ArtifactKind{
		types.KindLearningPath,
		types.KindSkillTraveller,
		types.KindAssignmentGroup,
		types.KindAdvancedLearningPath,
		types.KindSkillOntology,
	} {
		trackers, err := a.trackers.ListByUserKind(read, leaf.UserID, kind)
		if err != nil {
			return nil, err
		}
		for _, ct := range trackers {
			if ct.IsCompleted {
				continue
			}
			memberKind := containerMemberKind(kind)
			children, err := a.catalog.ListChildren(read, ct.Ref(), memberKind)
			if err != nil {
				a.log.Warn("container member list unavailable", "container", ct.Ref().String(), "error", err)
				continue
			}
			members := make([]types.ArtifactRef, 0, len(children))
			for _, c := range children {
				members = append(members, c.Ref)
			}
			meta, err := a.catalog.GetArtifact(read, ct.Ref())
			if err != nil {
				a.log.Warn("container metadata unavailable", "container", ct.Ref().String(), "error", err)
				continue
			}
			plan.containers = append(plan.containers, containerInfo{tracker: ct, meta: meta, members: members})
		}
	}
	return plan, nil
}

// containerMemberKind maps a container to its direct member kind; ontology
// members span kinds, signalled by the empty filter.
func containerMemberKind(kind types.ArtifactKind) types.ArtifactKind {
	switch kind {
	case types.KindLearningPath, types.KindSkillTraveller:
		return types.KindCourse
	case types.KindAdvancedLearningPath:
		return types.KindLearningPath
	case types.KindAssignmentGroup:
		return types.KindAssignment
	}
	return ""
}

func (a *aggregator) Apply(dbc dbctx.Context, tenant string, plan *CascadePlan, leaf *types.Tracker) error {
	changed := map[string]bool{refKey(leaf.Ref()): true}

	if leaf.ArtifactKind == types.KindSubmodule && plan.moduleTracker != nil {
		moduleDone, err := a.recomputeFromChildren(dbc, plan.moduleTracker, plan.submoduleCount)
		if err != nil {
			return err
		}
		if moduleDone {
			if err := a.dispatcher.Emit(dbc, leaf.UserID,
				[]types.MilestoneName{types.MilestoneModuleCompletionFirst}, plan.moduleTracker.Ref()); err != nil {
				return err
			}
		}
		if plan.courseTracker != nil {
			courseDone, err := a.recomputeFromChildren(dbc, plan.courseTracker, plan.moduleCount)
			if err != nil {
				return err
			}
			changed[refKey(plan.courseTracker.Ref())] = true
			if err := a.syncEnrollment(dbc, plan.courseTracker); err != nil {
				return err
			}
			if courseDone {
				if err := a.onContainerCompleted(dbc, tenant, plan, plan.courseTracker, plan.courseMeta); err != nil {
					return err
				}
			}
		}
	}

	if leaf.ArtifactKind != types.KindSubmodule {
		if err := a.syncEnrollment(dbc, leaf); err != nil {
			return err
		}
	}

	for _, c := range plan.containers {
		if !touchesAny(c.members, changed) {
			continue
		}
		done, err := a.recomputeContainer(dbc, c)
		if err != nil {
			return err
		}
		changed[refKey(c.tracker.Ref())] = true
		if err := a.syncEnrollment(dbc, c.tracker); err != nil {
			return err
		}
		if done {
			if err := a.onContainerCompleted(dbc, tenant, plan, c.tracker, c.meta); err != nil {
				return err
			}
		}
	}
	return nil
}

// recomputeFromChildren re-averages a parent from its child trackers using
// the catalog's live child count as the denominator. Returns whether the
// parent transitioned to completed.
func (a *aggregator) recomputeFromChildren(dbc dbctx.Context, parent *types.Tracker, childCount int) (bool, error) {
	locked, err := a.trackers.LockByID(dbc, parent.ID)
	if err != nil {
		return false, err
	}
	if locked == nil {
		return false, apperr.NotFound("parent tracker")
	}
	children, err := a.trackers.ListChildren(dbc, locked.ID)
	if err != nil {
		return false, err
	}
	var sum float64
	for _, c := range children {
		sum += c.Progress
	}
	return a.storeRecompute(dbc, parent, locked, Average(sum, childCount))
}

func (a *aggregator) recomputeContainer(dbc dbctx.Context, c containerInfo) (bool, error) {
	locked, err := a.trackers.LockByID(dbc, c.tracker.ID)
	if err != nil {
		return false, err
	}
	if locked == nil {
		return false, apperr.NotFound("container tracker")
	}

	byKind := map[types.ArtifactKind][]uuid.UUID{}
	for _, m := range c.members {
		byKind[m.Kind] = append(byKind[m.Kind], m.ID)
	}
	var sum float64
	tracked := 0
	for kind, ids := range byKind {
		rows, err := a.trackers.ListByUserKindIDs(dbc, locked.UserID, kind, ids)
		if err != nil {
			return false, err
		}
		for _, r := range rows {
			sum += r.Progress
			tracked++
		}
	}

	// Ontologies average over the artifacts the learner has actually
	// tracked; structural containers average over every member.
	denom := len(c.members)
	if locked.ArtifactKind == types.KindSkillOntology {
		denom = tracked
	}
	return a.storeRecompute(dbc, c.tracker, locked, Average(sum, denom))
}

func (a *aggregator) storeRecompute(dbc dbctx.Context, out, locked *types.Tracker, proposed float64) (bool, error) {
	newProgress := Monotonic(locked.Progress, proposed)
	justCompleted := !locked.IsCompleted && newProgress >= 100

	now := time.Now()
	updates := map[string]interface{}{
		"progress":         newProgress,
		"last_accessed_on": now,
	}
	if justCompleted {
		updates["is_completed"] = true
		updates["completion_date"] = now
	}
	if err := a.trackers.UpdateFields(dbc, locked.ID, updates); err != nil {
		return false, err
	}
	out.Progress = newProgress
	if justCompleted {
		out.IsCompleted = true
		out.CompletionDate = &now
	}
	return justCompleted, nil
}

// syncEnrollment advances the enrollment learning status alongside its
// top-level tracker. Status never moves backwards.
func (a *aggregator) syncEnrollment(dbc dbctx.Context, t *types.Tracker) error {
	if t.EnrollmentID == nil {
		return nil
	}
	e, err := a.enrollments.GetByID(dbc, *t.EnrollmentID)
	if err != nil || e == nil {
		return err
	}
	target := e.LearningStatus
	switch {
	case t.IsCompleted:
		target = types.LearningCompleted
	case t.Progress > 0:
		target = types.LearningInProgress
	}
	if target.Rank() <= e.LearningStatus.Rank() {
		return nil
	}
	return a.enrollments.UpdateFields(dbc, e.ID, map[string]interface{}{
		"learning_status": target,
	})
}

func (a *aggregator) onContainerCompleted(dbc dbctx.Context, tenant string, plan *CascadePlan, t *types.Tracker, meta *catalogsvc.Artifact) error {
	var milestones []types.MilestoneName
	var template string

	switch t.ArtifactKind {
	case types.KindCourse:
		milestones = []types.MilestoneName{types.MilestoneFirstCourseComplete, types.MilestoneCourseCompletion}
		template = "course_complete"
	case types.KindLearningPath:
		milestones = []types.MilestoneName{types.MilestoneLearningPathCompletion}
		template = "learning_path_complete"
	case types.KindAdvancedLearningPath:
		milestones = []types.MilestoneName{types.MilestoneALPCompletion}
		template = "advanced_learning_path_complete"
	case types.KindSkillTraveller:
		milestones = []types.MilestoneName{types.MilestoneSkillTravellerCompletion}
		template = "skill_traveller_complete"
	case types.KindSkillOntology:
		template = "skill_ontology_complete"
	case types.KindAssignmentGroup:
		// Group completion only feeds the ontology rollup.
	}

	if meta != nil && meta.IsCertificateEnabled {
		milestones = append(milestones, types.MilestoneCourseCertificateEarned)
	}
	if len(milestones) > 0 {
		if err := a.dispatcher.Emit(dbc, t.UserID, milestones, t.Ref()); err != nil {
			return err
		}
	}

	if template != "" && plan.user != nil {
		name := ""
		if meta != nil {
			name = meta.Name
		}
		payload := jobs.EmailPayload{
			Template: template,
			To:       []string{plan.user.Email},
			Vars: map[string]string{
				"user_name":     plan.user.FullName(),
				"artifact_name": name,
				"artifact_type": string(t.ArtifactKind),
			},
		}
		if err := a.enqueue.Enqueue(dbc, tenant, types.JobTypeEmailSend, &t.UserID, payload); err != nil {
			a.log.Error("enqueue completion email failed", "tracker", t.ID, "error", err)
		}
		if meta != nil && meta.IsCertificateEnabled {
			cert := jobs.EmailPayload{
				Template: "certificate_earned",
				To:       []string{plan.user.Email},
				Vars: map[string]string{
					"user_name":     plan.user.FullName(),
					"artifact_name": name,
				},
			}
			if err := a.enqueue.Enqueue(dbc, tenant, types.JobTypeEmailSend, &t.UserID, cert); err != nil {
				a.log.Error("enqueue certificate email failed", "tracker", t.ID, "error", err)
			}
		}
	}
	return nil
}

func (a *aggregator) RefreshContainers(ctx context.Context, tenant string, db *gorm.DB, userID uuid.UUID) error {
	plan, err := a.Plan(ctx, db, &types.Tracker{UserID: userID})
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for _, c := range plan.containers {
			done, err := a.recomputeContainer(dbc, c)
			if err != nil {
				return err
			}
			if err := a.syncEnrollment(dbc, c.tracker); err != nil {
				return err
			}
			if done {
				if err := a.onContainerCompleted(dbc, tenant, plan, c.tracker, c.meta); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func refKey(r types.ArtifactRef) string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

func touchesAny(members []types.ArtifactRef, changed map[string]bool) bool {
	for _, m := range members {
		if changed[refKey(m)] {
			return true
		}
	}
	return false
}

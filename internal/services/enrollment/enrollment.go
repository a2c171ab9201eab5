// Package enrollment admits learners into artifacts: direct and self
// enrollment, the admin approval queue, unenrollment, and the bulk sheet
// flows. Admission side effects (milestones, chat, calendar, session sync)
// commit atomically with the enrollment row; external calls are deferred to
// the job queue.
package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	calendarrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/calendar"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	enrollmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/enrollment"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/services/catalog"
	"github.com/learnsphere/learnsphere-backend/internal/services/gamification"
)

type EnrollInput struct {
	ActorID      uuid.UUID
	ActorIsAdmin bool
	UserID       uuid.UUID
	Ref          types.ArtifactRef
	StartDate    *time.Time
	EndDate      *time.Time
}

type DecideInput struct {
	EnrollmentID uuid.UUID
	ActorID      uuid.UUID
	Approve      bool
	Reason       string
}

type UnenrollInput struct {
	ActorID      uuid.UUID
	ActorIsAdmin bool
	UserID       uuid.UUID
	Ref          types.ArtifactRef
}

type Service interface {
	// Enroll admits directly when the actor is an admin or self-enrollment
	// applies; otherwise the enrollment waits in the approval queue.
	// Enrolling into the same artifact again returns the existing row.
	Enroll(ctx context.Context, tenantName string, db *gorm.DB, in EnrollInput) (*types.Enrollment, error)

	// Decide resolves a pending enrollment. Approved enrollments cannot be
	// rejected afterwards.
	Decide(ctx context.Context, tenantName string, db *gorm.DB, in DecideInput) (*types.Enrollment, error)

	// Unenroll removes the enrollment and its calendar events. Progress
	// trackers survive so re-enrollment resumes where the learner left off.
	Unenroll(ctx context.Context, tenantName string, db *gorm.DB, in UnenrollInput) error

	ListForUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*types.Enrollment, error)

	// BulkEnroll and BulkUnenroll apply parsed sheet rows, skipping bad ones.
	BulkEnroll(ctx context.Context, tenantName string, db *gorm.DB, actorID uuid.UUID, rows []EnrollRow, parseErrs []RowError) (*BulkOutcome, error)
	BulkUnenroll(ctx context.Context, tenantName string, db *gorm.DB, actorID uuid.UUID, rows []UnenrollRow, parseErrs []RowError) (*BulkOutcome, error)
}

type service struct {
	log         *logger.Logger
	enrollments enrollmentrepo.EnrollmentRepo
	users       userrepo.UserRepo
	settings    userrepo.TenantSettingRepo
	catalogues  catalogrepo.CatalogueRepo
	catalogRows catalogrepo.CatalogRepo
	calendar    calendarrepo.CalendarRepo
	catalog     catalog.Service
	dispatcher  gamification.Dispatcher
	enqueue     jobs.Enqueuer
}

func NewService(
	log *logger.Logger,
	enrollments enrollmentrepo.EnrollmentRepo,
	users userrepo.UserRepo,
	settings userrepo.TenantSettingRepo,
	catalogues catalogrepo.CatalogueRepo,
	catalogRows catalogrepo.CatalogRepo,
	calendar calendarrepo.CalendarRepo,
	catalogSvc catalog.Service,
	dispatcher gamification.Dispatcher,
	enqueue jobs.Enqueuer,
) Service {
	return &service{
		log:         log.With("service", "EnrollmentManager"),
		enrollments: enrollments,
		users:       users,
		settings:    settings,
		catalogues:  catalogues,
		catalogRows: catalogRows,
		calendar:    calendar,
		catalog:     catalogSvc,
		dispatcher:  dispatcher,
		enqueue:     enqueue,
	}
}

func (s *service) Enroll(ctx context.Context, tenantName string, db *gorm.DB, in EnrollInput) (*types.Enrollment, error) {
	if !in.Ref.Kind.Enrollable() {
		return nil, apperr.Newf(apperr.KindValidation, "kind %q is not enrollable", in.Ref.Kind)
	}
	if !in.ActorIsAdmin && in.ActorID != in.UserID {
		return nil, apperr.Validation("learners may only enroll themselves")
	}

	read := dbctx.Context{Ctx: ctx, Tx: db}
	u, err := s.users.GetByID(read, in.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	meta, err := s.catalog.GetArtifact(read, in.Ref)
	if err != nil {
		return nil, err
	}
	groupIDs, err := s.users.GroupIDsForUser(read, in.UserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.enrollments.FindForUserOrGroups(read, in.UserID, groupIDs, in.Ref)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Action != types.ActionRejected {
		return existing, nil
	}

	approval := types.ApprovalSelf
	action := types.ActionPending
	reason := ""
	if in.ActorIsAdmin {
		approval = types.ApprovalTenantAdmin
		action = types.ActionApproved
	} else {
		setting, err := s.settings.Get(read)
		if err != nil {
			return nil, err
		}
		// Self-enrollment needs the tenant flag and an unlocked catalogue
		// listing the artifact for this learner; either alone queues for
		// approval.
		if setting.IsSelfEnrollEnabled {
			listed, err := s.catalogues.HasSelfEnrollCatalogue(read, in.Ref, in.UserID, groupIDs)
			if err != nil {
				return nil, err
			}
			if listed {
				action = types.ActionApproved
				reason = "Self enroll enabled."
			}
		}
	}

	var out *types.Enrollment
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := time.Now()

		if existing != nil {
			// A rejected enrollment re-opens instead of accumulating rows.
			updates := map[string]interface{}{
				"approval_type": approval,
				"action":        action,
				"is_admitted":   action == types.ActionApproved,
				"reason":        reason,
				"actionee_id":   in.ActorID,
				"action_date":   now,
			}
			if err := s.enrollments.UpdateFields(dbc, existing.ID, updates); err != nil {
				return err
			}
			existing.Action = action
			existing.IsAdmitted = action == types.ActionApproved
			existing.Reason = reason
			out = existing
		} else {
			e := &types.Enrollment{
				UserID:       &in.UserID,
				ArtifactKind: in.Ref.Kind,
				ArtifactID:   in.Ref.ID,
				IsExternal:   in.Ref.IsExternal,
				ApprovalType: approval,
				Action:       action,
				IsAdmitted:   action == types.ActionApproved,
				Reason:       reason,
				StartDate:    in.StartDate,
				EndDate:      in.EndDate,
				ActioneeID:   &in.ActorID,
			}
			if action == types.ActionApproved {
				e.ActionDate = &now
			}
			created, err := s.enrollments.Create(dbc, e)
			if err != nil {
				return err
			}
			out = created
		}

		if out.IsAdmitted {
			return s.admit(dbc, tenantName, u, out, meta, approval == types.ApprovalSelf)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Decide(ctx context.Context, tenantName string, db *gorm.DB, in DecideInput) (*types.Enrollment, error) {
	read := dbctx.Context{Ctx: ctx, Tx: db}
	e, err := s.enrollments.GetByID(read, in.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("enrollment")
	}

	target := types.ActionRejected
	if in.Approve {
		target = types.ActionApproved
	}
	if e.Action == target {
		return e, nil
	}
	if e.Action == types.ActionApproved && target == types.ActionRejected {
		return nil, apperr.New(apperr.KindConflictingState, "approved enrollments cannot be rejected")
	}

	var u *types.User
	var meta *catalog.Artifact
	if e.UserID != nil {
		if u, err = s.users.GetByID(read, *e.UserID); err != nil {
			return nil, err
		}
		if meta, err = s.catalog.GetArtifact(read, e.Ref()); err != nil {
			return nil, err
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := time.Now()
		if err := s.enrollments.UpdateFields(dbc, e.ID, map[string]interface{}{
			"action":      target,
			"is_admitted": in.Approve,
			"reason":      in.Reason,
			"actionee_id": in.ActorID,
			"action_date": now,
		}); err != nil {
			return err
		}
		e.Action = target
		e.IsAdmitted = in.Approve
		e.Reason = in.Reason
		e.ActionDate = &now

		if in.Approve && u != nil {
			return s.admit(dbc, tenantName, u, e, meta, false)
		}
		// A rejection has no admission side effects; the learner just hears
		// about it.
		if !in.Approve && u != nil {
			payload := jobs.EmailPayload{
				Template: "enrollment_rejected",
				To:       []string{u.Email},
				Vars: map[string]string{
					"user_name":     u.FullName(),
					"artifact_name": meta.Name,
					"reason":        in.Reason,
				},
			}
			if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeEmailSend, &u.ID, payload); err != nil {
				s.log.Error("enqueue rejection email failed", "enrollment", e.ID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *service) Unenroll(ctx context.Context, tenantName string, db *gorm.DB, in UnenrollInput) error {
	if !in.ActorIsAdmin && in.ActorID != in.UserID {
		return apperr.Validation("learners may only unenroll themselves")
	}
	read := dbctx.Context{Ctx: ctx, Tx: db}
	groupIDs, err := s.users.GroupIDsForUser(read, in.UserID)
	if err != nil {
		return err
	}
	e, err := s.enrollments.FindForUserOrGroups(read, in.UserID, groupIDs, in.Ref)
	if err != nil {
		return err
	}
	if e == nil {
		return apperr.NotFound("enrollment")
	}
	if e.GroupID != nil && !in.ActorIsAdmin {
		return apperr.Validation("group enrollments are managed by admins")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.enrollments.Delete(dbc, e.ID); err != nil {
			return err
		}
		if err := s.calendar.DeleteForArtifact(dbc, in.UserID, in.Ref); err != nil {
			return err
		}
		payload := jobs.SessionUpdatePayload{
			UserID:       in.UserID,
			ArtifactKind: in.Ref.Kind,
			ArtifactID:   in.Ref.ID,
			Action:       "remove",
		}
		if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeSessionUpdate, &in.UserID, payload); err != nil {
			s.log.Error("enqueue session removal failed", "enrollment", e.ID, "error", err)
		}
		return nil
	})
}

func (s *service) ListForUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*types.Enrollment, error) {
	return s.enrollments.ListByUser(dbctx.Context{Ctx: ctx, Tx: db}, userID)
}

// admit runs the in-transaction admission side effects.
func (s *service) admit(dbc dbctx.Context, tenantName string, u *types.User, e *types.Enrollment, meta *catalog.Artifact, selfEnrolled bool) error {
	var milestones []types.MilestoneName
	switch e.ArtifactKind {
	case types.KindCourse:
		milestones = append(milestones, types.MilestoneFirstCourseEnroll)
		if selfEnrolled {
			milestones = append(milestones, types.MilestoneCourseSelfEnroll)
		}
	case types.KindLearningPath:
		milestones = append(milestones, types.MilestoneLearningPathStarter)
	}
	if len(milestones) > 0 {
		if err := s.dispatcher.Emit(dbc, u.ID, milestones, e.Ref()); err != nil {
			return err
		}
	}

	// Only courses have a chat channel.
	if e.ArtifactKind == types.KindCourse {
		if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeChatRegister, &u.ID, jobs.ChatRegisterPayload{
			UserEmail: u.Email,
			UserName:  u.FullName(),
			Channel:   meta.Code,
		}); err != nil {
			s.log.Error("enqueue chat registration failed", "enrollment", e.ID, "error", err)
		}
	}

	if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeEmailSend, &u.ID, jobs.EmailPayload{
		Template: "enrollment_approved",
		To:       []string{u.Email},
		Vars: map[string]string{
			"user_name":     u.FullName(),
			"artifact_name": meta.Name,
		},
	}); err != nil {
		s.log.Error("enqueue approval email failed", "enrollment", e.ID, "error", err)
	}

	switch e.ArtifactKind {
	case types.KindCourse, types.KindLearningPath, types.KindAdvancedLearningPath:
		payload := jobs.CalendarSyncPayload{
			UserIDs:      []uuid.UUID{u.ID},
			ArtifactKind: e.ArtifactKind,
			ArtifactID:   e.ArtifactID,
			Title:        meta.Name,
		}
		if e.StartDate != nil {
			payload.StartDate = e.StartDate.Format(time.RFC3339)
		}
		if e.EndDate != nil {
			payload.EndDate = e.EndDate.Format(time.RFC3339)
		}
		if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeCalendarSync, &u.ID, payload); err != nil {
			s.log.Error("enqueue calendar sync failed", "enrollment", e.ID, "error", err)
		}
	}

	if err := s.enqueue.Enqueue(dbc, tenantName, types.JobTypeSessionUpdate, &u.ID, jobs.SessionUpdatePayload{
		UserID:       u.ID,
		ArtifactKind: e.ArtifactKind,
		ArtifactID:   e.ArtifactID,
		Action:       "add",
	}); err != nil {
		s.log.Error("enqueue session update failed", "enrollment", e.ID, "error", err)
	}
	return nil
}

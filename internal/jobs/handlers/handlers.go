// Package handlers binds job types to their execution logic. Each handler is
// small: decode the payload, call the owning service or client, let the
// worker record the outcome.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/learnsphere-backend/internal/clients/chat"
	calendarrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/calendar"
	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/notify"
	"github.com/learnsphere/learnsphere-backend/internal/platform/blob"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	enrollmentsvc "github.com/learnsphere/learnsphere-backend/internal/services/enrollment"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
	"github.com/learnsphere/learnsphere-backend/internal/services/reminder"
)

type Deps struct {
	Log         *logger.Logger
	Notifier    notify.Notifier
	Chat        chat.Client
	Calendar    calendarrepo.CalendarRepo
	Users       userrepo.UserRepo
	Bucket      blob.BucketService
	Enrollments enrollmentsvc.Service
	Reminders   reminder.Scheduler
	Aggregator  progress.Aggregator
}

// RegisterAll wires every known job type into the worker.
func RegisterAll(w *jobs.Worker, d Deps) {
	w.Register(types.JobTypeEmailSend, d.emailSend)
	w.Register(types.JobTypeChatRegister, d.chatRegister)
	w.Register(types.JobTypeCalendarSync, d.calendarSync)
	w.Register(types.JobTypeSessionUpdate, d.sessionUpdate)
	w.Register(types.JobTypeBulkEnroll, d.bulkEnroll)
	w.Register(types.JobTypeBulkUnenroll, d.bulkUnenroll)
	w.Register(types.JobTypeReminderScan, d.reminderScan)
	w.Register(types.JobTypeOntologyRefresh, d.ontologyRefresh)
}

func (d Deps) emailSend(ctx context.Context, _ string, _ *gorm.DB, job *types.JobRun) error {
	var p jobs.EmailPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	return d.Notifier.Send(ctx, p.Template, p.To, p.Vars)
}

func (d Deps) chatRegister(ctx context.Context, _ string, _ *gorm.DB, job *types.JobRun) error {
	var p jobs.ChatRegisterPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	if err := d.Chat.RegisterUser(ctx, p.UserEmail, p.UserName); err != nil {
		return err
	}
	if p.Channel != "" {
		return d.Chat.JoinChannel(ctx, p.UserEmail, p.Channel)
	}
	return nil
}

func (d Deps) calendarSync(ctx context.Context, _ string, db *gorm.DB, job *types.JobRun) error {
	var p jobs.CalendarSyncPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx, Tx: db}
	ref := types.ArtifactRef{Kind: p.ArtifactKind, ID: p.ArtifactID}

	for _, userID := range p.UserIDs {
		if p.Remove {
			if err := d.Calendar.DeleteForArtifact(dbc, userID, ref); err != nil {
				return err
			}
			continue
		}
		event := &types.CalendarEvent{
			UserID:         userID,
			Title:          p.Title,
			EventSubtype:   p.ArtifactKind,
			EventSubtypeID: p.ArtifactID,
		}
		if t, err := time.Parse(time.RFC3339, p.StartDate); err == nil && p.StartDate != "" {
			event.StartDate = &t
		}
		if t, err := time.Parse(time.RFC3339, p.EndDate); err == nil && p.EndDate != "" {
			event.EndDate = &t
		}
		if err := d.Calendar.Create(dbc, event); err != nil {
			return err
		}
	}
	return nil
}

// sessionUpdate keeps the live-session roster aligned with admissions. The
// collaboration platform tracks membership per artifact channel.
func (d Deps) sessionUpdate(ctx context.Context, _ string, db *gorm.DB, job *types.JobRun) error {
	var p jobs.SessionUpdatePayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	u, err := d.Users.GetByID(dbctx.Context{Ctx: ctx, Tx: db}, p.UserID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", p.UserID)
	}
	channel := fmt.Sprintf("%s-%s", p.ArtifactKind, p.ArtifactID)
	if p.Action == "add" {
		return d.Chat.JoinChannel(ctx, u.Email, channel)
	}
	// Removal is reconciled by the platform's own roster sweep.
	d.Log.Debug("session removal noted", "user", p.UserID, "channel", channel)
	return nil
}

func (d Deps) bulkEnroll(ctx context.Context, tenantName string, db *gorm.DB, job *types.JobRun) error {
	var p jobs.BulkSheetPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	actorID, err := uuid.Parse(p.ActorID)
	if err != nil {
		return fmt.Errorf("bad actor id %q: %w", p.ActorID, err)
	}
	rc, err := d.Bucket.DownloadFile(ctx, p.ObjectKey)
	if err != nil {
		return err
	}
	defer rc.Close()
	rows, parseErrs, err := enrollmentsvc.ParseEnrollSheet(rc)
	if err != nil {
		return err
	}
	out, err := d.Enrollments.BulkEnroll(ctx, tenantName, db, actorID, rows, parseErrs)
	if err != nil {
		return err
	}
	d.Log.Info("bulk enrollment done",
		"tenant", tenantName, "processed", out.Processed, "skipped", len(out.Skipped))
	for _, s := range out.Skipped {
		d.Log.Warn("bulk enrollment row skipped", "line", s.Line, "reason", s.Reason)
	}
	return nil
}

func (d Deps) bulkUnenroll(ctx context.Context, tenantName string, db *gorm.DB, job *types.JobRun) error {
	var p jobs.BulkSheetPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	actorID, err := uuid.Parse(p.ActorID)
	if err != nil {
		return fmt.Errorf("bad actor id %q: %w", p.ActorID, err)
	}
	rc, err := d.Bucket.DownloadFile(ctx, p.ObjectKey)
	if err != nil {
		return err
	}
	defer rc.Close()
	rows, parseErrs, err := enrollmentsvc.ParseUnenrollSheet(rc)
	if err != nil {
		return err
	}
	out, err := d.Enrollments.BulkUnenroll(ctx, tenantName, db, actorID, rows, parseErrs)
	if err != nil {
		return err
	}
	d.Log.Info("bulk unenrollment done",
		"tenant", tenantName, "processed", out.Processed, "skipped", len(out.Skipped))
	return nil
}

func (d Deps) reminderScan(ctx context.Context, tenantName string, db *gorm.DB, _ *types.JobRun) error {
	_, err := d.Reminders.Scan(ctx, tenantName, db)
	return err
}

func (d Deps) ontologyRefresh(ctx context.Context, tenantName string, db *gorm.DB, job *types.JobRun) error {
	var p jobs.OntologyRefreshPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	return d.Aggregator.RefreshContainers(ctx, tenantName, db, p.UserID)
}

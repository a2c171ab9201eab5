// Package jobs runs the background half of the engine: a DB-backed queue
// with one table per tenant database, claimed by a shared worker pool. Rows
// staged inside a request transaction become runnable only when that
// transaction commits.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	jobsrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/jobs"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// EmailPayload drives the email_send handler. Template names are fixed
// strings the notifier owns.
type EmailPayload struct {
	Template string            `json:"template"`
	To       []string          `json:"to"`
	Vars     map[string]string `json:"vars,omitempty"`
}

type ChatRegisterPayload struct {
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
	Channel   string `json:"channel,omitempty"`
}

type CalendarSyncPayload struct {
	UserIDs      []uuid.UUID        `json:"user_ids"`
	ArtifactKind types.ArtifactKind `json:"artifact_kind"`
	ArtifactID   uuid.UUID          `json:"artifact_id"`
	Title        string             `json:"title"`
	StartDate    string             `json:"start_date,omitempty"`
	EndDate      string             `json:"end_date,omitempty"`
	Remove       bool               `json:"remove,omitempty"`
}

type SessionUpdatePayload struct {
	UserID       uuid.UUID          `json:"user_id"`
	ArtifactKind types.ArtifactKind `json:"artifact_kind"`
	ArtifactID   uuid.UUID          `json:"artifact_id"`
	Action       string             `json:"action"`
}

type BulkSheetPayload struct {
	ObjectKey string `json:"object_key"`
	ActorID   string `json:"actor_id,omitempty"`
}

type OntologyRefreshPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	OntologyID uuid.UUID `json:"ontology_id"`
}

// Enqueuer stages job rows. Callers pass the transaction handle of the
// operation whose side effect is being deferred.
type Enqueuer interface {
	Enqueue(dbc dbctx.Context, tenant, jobType string, ownerUserID *uuid.UUID, payload interface{}) error
}

type enqueuer struct {
	log  *logger.Logger
	repo jobsrepo.JobRunRepo
}

func NewEnqueuer(log *logger.Logger, repo jobsrepo.JobRunRepo) Enqueuer {
	return &enqueuer{log: log.With("component", "JobEnqueuer"), repo: repo}
}

func (e *enqueuer) Enqueue(dbc dbctx.Context, tenant, jobType string, ownerUserID *uuid.UUID, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = e.repo.Create(dbc, []*types.JobRun{{
		Tenant:      tenant,
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		Payload:     datatypes.JSON(raw),
	}})
	if err != nil {
		return err
	}
	e.log.Debug("job enqueued", "tenant", tenant, "type", jobType)
	return nil
}

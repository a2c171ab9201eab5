package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobRun is one queued background task in a tenant database. Rows staged
// inside a transaction become visible to the worker only after commit, which
// is the enqueue-after-commit guarantee the dispatch model relies on.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Tenant      string         `gorm:"column:tenant;not null;index" json:"tenant"`
	OwnerUserID *uuid.UUID     `gorm:"type:uuid;column:owner_user_id;index" json:"owner_user_id,omitempty"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType  string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (JobRun) TableName() string { return "job_run" }

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCanceled  = "canceled"
)

// Job types dispatched by the engine.
const (
	JobTypeEmailSend       = "email_send"
	JobTypeChatRegister    = "chat_register"
	JobTypeCalendarSync    = "calendar_sync"
	JobTypeSessionUpdate   = "session_participant_update"
	JobTypeBulkEnroll      = "bulk_enroll"
	JobTypeBulkUnenroll    = "bulk_unenroll"
	JobTypeReminderScan    = "enrollment_reminder_scan"
	JobTypeOntologyRefresh = "skill_ontology_refresh"
)

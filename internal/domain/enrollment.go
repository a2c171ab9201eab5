package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment admits a learner or a user group into an artifact. Exactly one
// of UserID/GroupID is set. IsAdmitted holds iff Action is approved.
type Enrollment struct {
	ID      uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID  *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	GroupID *uuid.UUID `gorm:"type:uuid;column:group_id;index" json:"group_id,omitempty"`

	ArtifactKind ArtifactKind `gorm:"column:artifact_kind;not null;index" json:"artifact_kind"`
	ArtifactID   uuid.UUID    `gorm:"type:uuid;column:artifact_id;not null;index" json:"artifact_id"`
	IsExternal   bool         `gorm:"column:is_external;not null;default:false" json:"is_external"`

	ApprovalType   ApprovalType     `gorm:"column:approval_type;not null;default:'self'" json:"approval_type"`
	Action         EnrollmentAction `gorm:"column:action;not null;default:'pending';index" json:"action"`
	IsAdmitted     bool             `gorm:"column:is_admitted;not null;default:false;index" json:"is_admitted"`
	LearningStatus LearningStatus   `gorm:"column:learning_status;not null;default:'not_started'" json:"learning_status"`

	StartDate  *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate    *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	ActionDate *time.Time `gorm:"column:action_date" json:"action_date,omitempty"`
	Reason     string     `gorm:"column:reason" json:"reason,omitempty"`
	ActioneeID *uuid.UUID `gorm:"type:uuid;column:actionee_id" json:"actionee_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Enrollment) TableName() string { return "enrollment" }

func (e *Enrollment) Ref() ArtifactRef {
	return ArtifactRef{Kind: e.ArtifactKind, ID: e.ArtifactID, IsExternal: e.IsExternal}
}

// EnrollmentReminder configures the lead time, in days before end_date, at
// which the reminder scheduler emails learners of the given kind.
type EnrollmentReminder struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ArtifactKind ArtifactKind `gorm:"column:artifact_kind;not null;uniqueIndex" json:"artifact_kind"`
	Days         int          `gorm:"column:days;not null" json:"days"`
	CreatedAt    time.Time    `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:now()" json:"updated_at"`
}

func (EnrollmentReminder) TableName() string { return "enrollment_reminder" }

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tracker is the per-learner progress node for one artifact. Nested trackers
// reference their parent; top-level trackers may back-reference the
// enrollment they satisfy. At most one live tracker exists per
// (user, artifact kind, artifact id).
type Tracker struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_tracker_artifact,unique,priority:1" json:"user_id"`
	ArtifactKind ArtifactKind `gorm:"column:artifact_kind;not null;index:idx_tracker_artifact,unique,priority:2" json:"artifact_kind"`
	ArtifactID   uuid.UUID    `gorm:"type:uuid;column:artifact_id;not null;index:idx_tracker_artifact,unique,priority:3" json:"artifact_id"`
	IsExternal   bool         `gorm:"column:is_external;not null;default:false" json:"is_external"`

	ParentID *uuid.UUID `gorm:"type:uuid;column:parent_id;index" json:"parent_id,omitempty"`
	Parent   *Tracker   `gorm:"foreignKey:ParentID;references:ID" json:"parent,omitempty"`

	EnrollmentID *uuid.UUID `gorm:"type:uuid;column:enrollment_id;index" json:"enrollment_id,omitempty"`

	Progress          float64    `gorm:"column:progress;not null;default:0" json:"progress"`
	CompletedDuration int        `gorm:"column:completed_duration;not null;default:0" json:"completed_duration"`
	LastAccessedOn    *time.Time `gorm:"column:last_accessed_on" json:"last_accessed_on,omitempty"`
	IsCompleted       bool       `gorm:"column:is_completed;not null;default:false;index" json:"is_completed"`
	CompletionDate    *time.Time `gorm:"column:completion_date" json:"completion_date,omitempty"`

	// Attempt accounting, meaningful only for assessments, assignments and
	// file-submission submodules.
	AllowedAttempt   int  `gorm:"column:allowed_attempt;not null;default:0" json:"allowed_attempt"`
	AvailableAttempt int  `gorm:"column:available_attempt;not null;default:0" json:"available_attempt"`
	ReattemptCount   int  `gorm:"column:reattempt_count;not null;default:0" json:"reattempt_count"`
	IsPass           bool `gorm:"column:is_pass;not null;default:false" json:"is_pass"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Tracker) TableName() string { return "tracker" }

func (t *Tracker) Ref() ArtifactRef {
	return ArtifactRef{Kind: t.ArtifactKind, ID: t.ArtifactID, IsExternal: t.IsExternal}
}

// RequiredParentKind returns the tracker kind that must exist above a
// tracker of kind k, or "" when k is a top-level tracker.
func RequiredParentKind(k ArtifactKind) ArtifactKind {
	switch k {
	case KindSubmodule:
		return KindCourseModule
	case KindCourseModule:
		return KindCourse
	}
	return ""
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Submission is one file upload against a submission-capable tracker.
// Attempt ordinals are dense 1..N per tracker; rows are append-only.
type Submission struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TrackerID uuid.UUID `gorm:"type:uuid;not null;index:idx_submission_attempt,unique,priority:1" json:"tracker_id"`
	Tracker   *Tracker  `gorm:"constraint:OnDelete:CASCADE;foreignKey:TrackerID;references:ID" json:"tracker,omitempty"`
	Attempt   int       `gorm:"column:attempt;not null;index:idx_submission_attempt,unique,priority:2" json:"attempt"`

	Files       datatypes.JSON `gorm:"column:files;type:jsonb" json:"files"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`

	ReviewerID       *uuid.UUID `gorm:"type:uuid;column:reviewer_id" json:"reviewer_id,omitempty"`
	ReviewerFeedback string     `gorm:"column:reviewer_feedback;type:text" json:"reviewer_feedback,omitempty"`
	PassPercentage   float64    `gorm:"column:pass_percentage;not null;default:0" json:"pass_percentage"`
	Progress         float64    `gorm:"column:progress;not null;default:0" json:"progress"`
	IsPass           bool       `gorm:"column:is_pass;not null;default:false" json:"is_pass"`
	IsReviewed       bool       `gorm:"column:is_reviewed;not null;default:false" json:"is_reviewed"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Submission) TableName() string { return "submission" }

// SubmissionFile is the shape stored in the Files JSON column.
type SubmissionFile struct {
	Name       string `json:"name"`
	StorageKey string `json:"storage_key"`
	SizeBytes  int64  `json:"size_bytes"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Assessment is an attempt-bearing item attached to an owner artifact: a
// module or course (module/final), an lp or lp-course, an alp or alp-lp, a
// skill traveller or st-course.
type Assessment struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	OwnerKind       ArtifactKind   `gorm:"column:owner_kind;not null;index:idx_assessment_owner,priority:1" json:"owner_kind"`
	OwnerID         uuid.UUID      `gorm:"type:uuid;column:owner_id;not null;index:idx_assessment_owner,priority:2" json:"owner_id"`
	Kind            AssessmentKind `gorm:"column:kind;not null;default:'module'" json:"kind"`
	ProviderType    ProviderType   `gorm:"column:provider_type;not null;default:'yaksha'" json:"provider_type"`
	ProviderRef     string         `gorm:"column:provider_ref;not null" json:"provider_ref"`
	Sequence        int            `gorm:"column:sequence;not null;default:1" json:"sequence"`
	IsPractice      bool           `gorm:"column:is_practice;not null;default:false" json:"is_practice"`
	IsMandatory     bool           `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	AllowedAttempts *int           `gorm:"column:allowed_attempts" json:"allowed_attempts,omitempty"`
	PassPercentage  float64        `gorm:"column:pass_percentage;not null;default:0" json:"pass_percentage"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assessment) TableName() string { return "assessment" }

// AssessmentConfig is one step of the ordered config resolution chain. Scope
// narrows from an exact artifact binding down to the tenant default.
type AssessmentConfig struct {
	ID                      uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                    string         `gorm:"column:name;not null" json:"name"`
	Scope                   ConfigScope    `gorm:"column:scope;not null;index" json:"scope"`
	ArtifactKind            ArtifactKind   `gorm:"column:artifact_kind;index" json:"artifact_kind,omitempty"`
	ArtifactID              *uuid.UUID     `gorm:"type:uuid;column:artifact_id;index" json:"artifact_id,omitempty"`
	CatalogueID             *uuid.UUID     `gorm:"type:uuid;column:catalogue_id;index" json:"catalogue_id,omitempty"`
	TotalAttempts           int            `gorm:"column:total_attempts;not null;default:1" json:"total_attempts"`
	PassPercentage          float64        `gorm:"column:pass_percentage;not null;default:60" json:"pass_percentage"`
	DurationMinutes         int            `gorm:"column:duration_minutes;not null;default:60" json:"duration_minutes"`
	NegativeScorePercentage float64        `gorm:"column:negative_score_percentage;not null;default:0" json:"negative_score_percentage"`
	EnableShuffling         bool           `gorm:"column:enable_shuffling;not null;default:false" json:"enable_shuffling"`
	ResultType              string         `gorm:"column:result_type" json:"result_type"`
	RedirectURL             string         `gorm:"column:redirect_url" json:"redirect_url"`
	EnableProctoring        bool           `gorm:"column:enable_proctoring;not null;default:false" json:"enable_proctoring"`
	EnableAeyeProctoring    bool           `gorm:"column:enable_aeye_proctoring;not null;default:false" json:"enable_aeye_proctoring"`
	ProctoringConfig        datatypes.JSON `gorm:"column:proctoring_config;type:jsonb" json:"proctoring_config,omitempty"`
	EnablePlagiarism        bool           `gorm:"column:enable_plagiarism;not null;default:false" json:"enable_plagiarism"`
	CreatedAt               time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt               gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssessmentConfig) TableName() string { return "assessment_config" }

type ConfigScope string

const (
	ScopeExactArtifact    ConfigScope = "exact_artifact"
	ScopeArtifactAttached ConfigScope = "artifact_attached"
	ScopeCatalogue        ConfigScope = "catalogue"
	ScopeTenantDefault    ConfigScope = "tenant_default"
)

// SubmissionConfig bounds file submissions for submission-capable items.
type SubmissionConfig struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Scope             ConfigScope    `gorm:"column:scope;not null;index" json:"scope"`
	ArtifactKind      ArtifactKind   `gorm:"column:artifact_kind;index" json:"artifact_kind,omitempty"`
	ArtifactID        *uuid.UUID     `gorm:"type:uuid;column:artifact_id;index" json:"artifact_id,omitempty"`
	CatalogueID       *uuid.UUID     `gorm:"type:uuid;column:catalogue_id;index" json:"catalogue_id,omitempty"`
	MaxFilesAllowed   int            `gorm:"column:max_files_allowed;not null;default:1" json:"max_files_allowed"`
	ExtensionsAllowed string         `gorm:"column:extensions_allowed;not null;default:'pdf,zip'" json:"extensions_allowed"`
	TotalAttempts     int            `gorm:"column:total_attempts;not null;default:1" json:"total_attempts"`
	PassPercentage    float64        `gorm:"column:pass_percentage;not null;default:50" json:"pass_percentage"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SubmissionConfig) TableName() string { return "submission_config" }

// AssessmentSchedule is the provider-side attempt-set reservation for a
// (learner, assessment) pair. One schedule per tracker.
type AssessmentSchedule struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TrackerID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"tracker_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	UserEmail        string         `gorm:"column:user_email;not null;index" json:"user_email"`
	AssessmentID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"assessment_id"`
	ProviderType     ProviderType   `gorm:"column:provider_type;not null" json:"provider_type"`
	ScheduleID       int64          `gorm:"column:schedule_id;not null;default:0;index" json:"schedule_id"`
	ScheduleLink     string         `gorm:"column:schedule_link" json:"schedule_link"`
	ExternalInviteID string         `gorm:"column:external_invite_id" json:"external_invite_id,omitempty"`
	ConfigArgs       datatypes.JSON `gorm:"column:config_args;type:jsonb" json:"config_args,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AssessmentSchedule) TableName() string { return "assessment_schedule" }

// AttemptResult is one ingested provider attempt, append-only and unique per
// (schedule, attempt number) so webhook retries and pulls can race safely.
type AttemptResult struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScheduleRowID     uuid.UUID  `gorm:"type:uuid;column:schedule_row_id;not null;index:idx_attempt_result,unique,priority:1" json:"schedule_row_id"`
	AttemptNumber     int        `gorm:"column:attempt_number;not null;index:idx_attempt_result,unique,priority:2" json:"attempt_number"`
	DurationSecs      int        `gorm:"column:duration_secs;not null;default:0" json:"duration_secs"`
	TotalQuestions    int        `gorm:"column:total_questions;not null;default:0" json:"total_questions"`
	AnsweredQuestions int        `gorm:"column:answered_questions;not null;default:0" json:"answered_questions"`
	Progress          float64    `gorm:"column:progress;not null;default:0" json:"progress"`
	IsPass            bool       `gorm:"column:is_pass;not null;default:false" json:"is_pass"`
	StartedAt         *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt           *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (AttemptResult) TableName() string { return "attempt_result" }

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Local catalog tables. Artifacts are authored elsewhere; the engine reads
// them for structure (ordering, flags, durations) and never mutates content.

type Course struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                     string         `gorm:"column:name;not null" json:"name"`
	Code                     string         `gorm:"column:code;index" json:"code"`
	Proficiency              Proficiency    `gorm:"column:proficiency;not null;default:'general'" json:"proficiency"`
	IsDependenciesSequential bool           `gorm:"column:is_dependencies_sequential;not null;default:false" json:"is_dependencies_sequential"`
	IsCertificateEnabled     bool           `gorm:"column:is_certificate_enabled;not null;default:false" json:"is_certificate_enabled"`
	AuthorEmails             string         `gorm:"column:author_emails" json:"author_emails,omitempty"`
	StartDate                *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate                  *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

type CourseModule struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_course_module_seq,unique,priority:1" json:"course_id"`
	Course      *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Sequence    int            `gorm:"column:sequence;not null;index:idx_course_module_seq,unique,priority:2" json:"sequence"`
	IsMandatory bool           `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseModule) TableName() string { return "course_module" }

type Submodule struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseModuleID uuid.UUID      `gorm:"type:uuid;not null;index:idx_submodule_seq,unique,priority:1" json:"course_module_id"`
	CourseModule   *CourseModule  `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseModuleID;references:ID" json:"course_module,omitempty"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Type           SubmoduleType  `gorm:"column:type;not null" json:"type"`
	Sequence       int            `gorm:"column:sequence;not null;index:idx_submodule_seq,unique,priority:2" json:"sequence"`
	IsMandatory    bool           `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	DurationSecs   int            `gorm:"column:duration_secs;not null;default:0" json:"duration_secs"`
	EvaluationType EvaluationType `gorm:"column:evaluation_type;not null;default:'non_evaluated'" json:"evaluation_type"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Submodule) TableName() string { return "submodule" }

type LearningPath struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                     string         `gorm:"column:name;not null" json:"name"`
	Code                     string         `gorm:"column:code;index" json:"code"`
	Proficiency              Proficiency    `gorm:"column:proficiency;not null;default:'general'" json:"proficiency"`
	IsDependenciesSequential bool           `gorm:"column:is_dependencies_sequential;not null;default:false" json:"is_dependencies_sequential"`
	IsCertificateEnabled     bool           `gorm:"column:is_certificate_enabled;not null;default:false" json:"is_certificate_enabled"`
	StartDate                *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate                  *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LearningPath) TableName() string { return "learning_path" }

type LPCourse struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearningPathID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_lp_course_seq,unique,priority:1" json:"learning_path_id"`
	LearningPath     *LearningPath  `gorm:"constraint:OnDelete:CASCADE;foreignKey:LearningPathID;references:ID" json:"learning_path,omitempty"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Sequence         int            `gorm:"column:sequence;not null;index:idx_lp_course_seq,unique,priority:2" json:"sequence"`
	IsMandatory      bool           `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	IsLockActive     bool           `gorm:"column:is_lock_active;not null;default:false" json:"is_lock_active"`
	CourseUnlockDate *time.Time     `gorm:"column:course_unlock_date" json:"course_unlock_date,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LPCourse) TableName() string { return "lp_course" }

type AdvancedLearningPath struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                     string         `gorm:"column:name;not null" json:"name"`
	Code                     string         `gorm:"column:code;index" json:"code"`
	Proficiency              Proficiency    `gorm:"column:proficiency;not null;default:'general'" json:"proficiency"`
	IsDependenciesSequential bool           `gorm:"column:is_dependencies_sequential;not null;default:false" json:"is_dependencies_sequential"`
	IsCertificateEnabled     bool           `gorm:"column:is_certificate_enabled;not null;default:false" json:"is_certificate_enabled"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AdvancedLearningPath) TableName() string { return "advanced_learning_path" }

type ALPLearningPath struct {
	ID                     uuid.UUID             `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AdvancedLearningPathID uuid.UUID             `gorm:"type:uuid;not null;index:idx_alp_lp_seq,unique,priority:1" json:"advanced_learning_path_id"`
	AdvancedLearningPath   *AdvancedLearningPath `gorm:"constraint:OnDelete:CASCADE;foreignKey:AdvancedLearningPathID;references:ID" json:"advanced_learning_path,omitempty"`
	LearningPathID         uuid.UUID             `gorm:"type:uuid;not null;index" json:"learning_path_id"`
	Sequence               int                   `gorm:"column:sequence;not null;index:idx_alp_lp_seq,unique,priority:2" json:"sequence"`
	IsMandatory            bool                  `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	CreatedAt              time.Time             `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time             `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt              gorm.DeletedAt        `gorm:"index" json:"deleted_at,omitempty"`
}

func (ALPLearningPath) TableName() string { return "alp_lp" }

type SkillTraveller struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                     string         `gorm:"column:name;not null" json:"name"`
	Code                     string         `gorm:"column:code;index" json:"code"`
	Proficiency              Proficiency    `gorm:"column:proficiency;not null;default:'general'" json:"proficiency"`
	IsDependenciesSequential bool           `gorm:"column:is_dependencies_sequential;not null;default:false" json:"is_dependencies_sequential"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SkillTraveller) TableName() string { return "skill_traveller" }

type STCourse struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SkillTravellerID uuid.UUID       `gorm:"type:uuid;not null;index:idx_st_course_seq,unique,priority:1" json:"skill_traveller_id"`
	SkillTraveller   *SkillTraveller `gorm:"constraint:OnDelete:CASCADE;foreignKey:SkillTravellerID;references:ID" json:"skill_traveller,omitempty"`
	CourseID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"course_id"`
	Sequence         int             `gorm:"column:sequence;not null;index:idx_st_course_seq,unique,priority:2" json:"sequence"`
	IsMandatory      bool            `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	CreatedAt        time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (STCourse) TableName() string { return "st_course" }

type Playground struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Code      string         `gorm:"column:code;index" json:"code"`
	VMName    string         `gorm:"column:vm_name" json:"vm_name"`
	SkuID     string         `gorm:"column:sku_id" json:"sku_id"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Playground) TableName() string { return "playground" }

type PlaygroundGroup struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Code      string         `gorm:"column:code;index" json:"code"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PlaygroundGroup) TableName() string { return "playground_group" }

type PlaygroundGroupItem struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PlaygroundGroupID uuid.UUID        `gorm:"type:uuid;not null;index:idx_pg_item_seq,unique,priority:1" json:"playground_group_id"`
	PlaygroundGroup   *PlaygroundGroup `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlaygroundGroupID;references:ID" json:"playground_group,omitempty"`
	PlaygroundID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"playground_id"`
	Sequence          int              `gorm:"column:sequence;not null;index:idx_pg_item_seq,unique,priority:2" json:"sequence"`
	CreatedAt         time.Time        `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (PlaygroundGroupItem) TableName() string { return "playground_group_item" }

// Assignment tools whose work never leaves the provisioned environment.
// These assignments are scored by the tool, so file uploads are refused.
const (
	ToolExternalLab = "external_lab"
	ToolMML         = "mml"
)

// ToolAcceptsUploads reports whether an assignment tool takes learner file
// submissions.
func ToolAcceptsUploads(tool string) bool {
	switch tool {
	case ToolExternalLab, ToolMML:
		return false
	}
	return true
}

type Assignment struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Code            string         `gorm:"column:code;index" json:"code"`
	Tool            string         `gorm:"column:tool" json:"tool"`
	EvaluationType  EvaluationType `gorm:"column:evaluation_type;not null;default:'non_evaluated'" json:"evaluation_type"`
	AllowedAttempts *int           `gorm:"column:allowed_attempts" json:"allowed_attempts,omitempty"`
	PassPercentage  float64        `gorm:"column:pass_percentage;not null;default:0" json:"pass_percentage"`
	AuthorEmails    string         `gorm:"column:author_emails" json:"author_emails,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assignment) TableName() string { return "assignment" }

type AssignmentGroup struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                     string         `gorm:"column:name;not null" json:"name"`
	Code                     string         `gorm:"column:code;index" json:"code"`
	IsDependenciesSequential bool           `gorm:"column:is_dependencies_sequential;not null;default:false" json:"is_dependencies_sequential"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssignmentGroup) TableName() string { return "assignment_group" }

type AssignmentGroupItem struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AssignmentGroupID uuid.UUID        `gorm:"type:uuid;not null;index:idx_ag_item_seq,unique,priority:1" json:"assignment_group_id"`
	AssignmentGroup   *AssignmentGroup `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssignmentGroupID;references:ID" json:"assignment_group,omitempty"`
	AssignmentID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"assignment_id"`
	Sequence          int              `gorm:"column:sequence;not null;index:idx_ag_item_seq,unique,priority:2" json:"sequence"`
	IsMandatory       bool             `gorm:"column:is_mandatory;not null;default:true" json:"is_mandatory"`
	CreatedAt         time.Time        `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssignmentGroupItem) TableName() string { return "assignment_group_item" }

// SkillOntology is a learner-defined bag of artifacts bridging a current and
// a desired skill; its progress aggregates every linked artifact.
type SkillOntology struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	CurrentSkill string         `gorm:"column:current_skill" json:"current_skill"`
	DesiredSkill string         `gorm:"column:desired_skill" json:"desired_skill"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SkillOntology) TableName() string { return "skill_ontology" }

type SkillOntologyArtifact struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SkillOntologyID uuid.UUID      `gorm:"type:uuid;not null;index:idx_so_artifact,unique,priority:1" json:"skill_ontology_id"`
	SkillOntology   *SkillOntology `gorm:"constraint:OnDelete:CASCADE;foreignKey:SkillOntologyID;references:ID" json:"skill_ontology,omitempty"`
	ArtifactKind    ArtifactKind   `gorm:"column:artifact_kind;not null;index:idx_so_artifact,unique,priority:2" json:"artifact_kind"`
	ArtifactID      uuid.UUID      `gorm:"type:uuid;column:artifact_id;not null;index:idx_so_artifact,unique,priority:3" json:"artifact_id"`
	IsExternal      bool           `gorm:"column:is_external;not null;default:false" json:"is_external"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SkillOntologyArtifact) TableName() string { return "skill_ontology_artifact" }

// Catalogue is an admin grouping of artifacts with visibility and
// self-enroll flags, optionally scoped to user groups or single users.
type Catalogue struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name             string         `gorm:"column:name;not null" json:"name"`
	IsLocked         bool           `gorm:"column:is_locked;not null;default:false" json:"is_locked"`
	IsSelfEnrollment bool           `gorm:"column:is_self_enrollment;not null;default:false" json:"is_self_enrollment"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Catalogue) TableName() string { return "catalogue" }

type CatalogueArtifact struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CatalogueID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_catalogue_artifact,unique,priority:1" json:"catalogue_id"`
	Catalogue    *Catalogue     `gorm:"constraint:OnDelete:CASCADE;foreignKey:CatalogueID;references:ID" json:"catalogue,omitempty"`
	ArtifactKind ArtifactKind   `gorm:"column:artifact_kind;not null;index:idx_catalogue_artifact,unique,priority:2" json:"artifact_kind"`
	ArtifactID   uuid.UUID      `gorm:"type:uuid;column:artifact_id;not null;index:idx_catalogue_artifact,unique,priority:3" json:"artifact_id"`
	IsExternal   bool           `gorm:"column:is_external;not null;default:false" json:"is_external"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CatalogueArtifact) TableName() string { return "catalogue_artifact" }

type CatalogueUserGroup struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CatalogueID uuid.UUID  `gorm:"type:uuid;not null;index:idx_catalogue_group,unique,priority:1" json:"catalogue_id"`
	Catalogue   *Catalogue `gorm:"constraint:OnDelete:CASCADE;foreignKey:CatalogueID;references:ID" json:"catalogue,omitempty"`
	GroupID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_catalogue_group,unique,priority:2" json:"group_id"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (CatalogueUserGroup) TableName() string { return "catalogue_user_group" }

type CatalogueUser struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CatalogueID uuid.UUID  `gorm:"type:uuid;not null;index:idx_catalogue_user,unique,priority:1" json:"catalogue_id"`
	Catalogue   *Catalogue `gorm:"constraint:OnDelete:CASCADE;foreignKey:CatalogueID;references:ID" json:"catalogue,omitempty"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_catalogue_user,unique,priority:2" json:"user_id"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (CatalogueUser) TableName() string { return "catalogue_user" }

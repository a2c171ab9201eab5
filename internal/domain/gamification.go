package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Milestone configuration: a named accomplishment worth a number of points.
// Points are read at award time; later edits never rewrite past activities.
type Milestone struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      MilestoneName  `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Points    int            `gorm:"column:points;not null;default:0" json:"points"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Milestone) TableName() string { return "milestone" }

// Badge configuration. Assessment badges match a score band, video badges a
// watch-duration band; both are scoped by proficiency.
type Badge struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Category    BadgeCategory `gorm:"column:category;not null;index" json:"category"`
	Type        BadgeType     `gorm:"column:type;not null" json:"type"`
	Proficiency Proficiency   `gorm:"column:proficiency;not null;default:'general'" json:"proficiency"`
	Points      int           `gorm:"column:points;not null;default:0" json:"points"`
	FromRange   float64       `gorm:"column:from_range;not null;default:0" json:"from_range"`
	ToRange     float64       `gorm:"column:to_range;not null;default:0" json:"to_range"`
	CreatedAt   time.Time     `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (Badge) TableName() string { return "badge" }

// LeaderboardActivity is an immutable milestone award. Singleton milestones
// allow one row per (user, milestone); per-artifact milestones dedupe on
// (user, milestone, artifact).
type LeaderboardActivity struct {
	ID           uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_leaderboard_user,priority:1" json:"user_id"`
	Milestone    MilestoneName `gorm:"column:milestone;not null;index:idx_leaderboard_user,priority:2" json:"milestone"`
	ArtifactKind ArtifactKind  `gorm:"column:artifact_kind" json:"artifact_kind,omitempty"`
	ArtifactID   *uuid.UUID    `gorm:"type:uuid;column:artifact_id" json:"artifact_id,omitempty"`
	Points       int           `gorm:"column:points;not null;default:0" json:"points"`
	CreatedAt    time.Time     `gorm:"not null;default:now();index" json:"created_at"`
}

func (LeaderboardActivity) TableName() string { return "leaderboard_activity" }

// BadgeActivity is an immutable badge award keyed by
// (user, category, type, learning kind, learning id, tracker). A recompute
// that lands a higher-point badge for the same learning key supersedes the
// lower one.
type BadgeActivity struct {
	ID           uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_badge_activity,unique,priority:1" json:"user_id"`
	BadgeID      uuid.UUID     `gorm:"type:uuid;not null" json:"badge_id"`
	Badge        *Badge        `gorm:"foreignKey:BadgeID;references:ID" json:"badge,omitempty"`
	Category     BadgeCategory `gorm:"column:category;not null;index:idx_badge_activity,unique,priority:2" json:"category"`
	Type         BadgeType     `gorm:"column:type;not null;index:idx_badge_activity,unique,priority:3" json:"type"`
	LearningType ArtifactKind  `gorm:"column:learning_type;not null;index:idx_badge_activity,unique,priority:4" json:"learning_type"`
	LearningID   uuid.UUID     `gorm:"type:uuid;column:learning_id;not null;index:idx_badge_activity,unique,priority:5" json:"learning_id"`
	TrackerID    uuid.UUID     `gorm:"type:uuid;not null;index:idx_badge_activity,unique,priority:6" json:"tracker_id"`
	Points       float64       `gorm:"column:points;not null;default:0" json:"points"`
	CreatedAt    time.Time     `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (BadgeActivity) TableName() string { return "badge_activity" }

// CourseExpert records an expert promotion earned by passing a course final
// assessment with a high score. One row per (user, course).
type CourseExpert struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_course_expert,unique,priority:1" json:"user_id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;index:idx_course_expert,unique,priority:2" json:"course_id"`
	Score     float64   `gorm:"column:score;not null;default:0" json:"score"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CourseExpert) TableName() string { return "course_expert" }

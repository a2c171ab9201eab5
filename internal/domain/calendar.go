package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalendarEvent is a downstream row created for admitted enrollments of
// course/lp/alp kinds and removed again on unenroll.
type CalendarEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	EventType      string         `gorm:"column:event_type;not null;default:'learning'" json:"event_type"`
	EventSubtype   ArtifactKind   `gorm:"column:event_subtype;not null;index:idx_calendar_subtype,priority:1" json:"event_subtype"`
	EventSubtypeID uuid.UUID      `gorm:"type:uuid;column:event_subtype_id;not null;index:idx_calendar_subtype,priority:2" json:"event_subtype_id"`
	StartDate      *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate        *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CalendarEvent) TableName() string { return "calendar_event" }

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	FirstName string         `gorm:"column:first_name" json:"first_name"`
	LastName  string         `gorm:"column:last_name" json:"last_name"`
	Role      string         `gorm:"column:role;not null;default:'learner';index" json:"role"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type UserGroup struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserGroup) TableName() string { return "user_group" }

type UserGroupMember struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GroupID uuid.UUID `gorm:"type:uuid;not null;index:idx_group_member,unique,priority:1" json:"group_id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index:idx_group_member,unique,priority:2" json:"user_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserGroupMember) TableName() string { return "user_group_member" }

// TenantSetting is a single-row table of tenant-wide toggles consulted by
// the enrollment manager and reminder scheduler.
type TenantSetting struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	IsSelfEnrollEnabled bool      `gorm:"column:is_self_enroll_enabled;not null;default:false" json:"is_self_enroll_enabled"`
	WebsiteURL          string    `gorm:"column:website_url" json:"website_url"`
	StaffEmail          string    `gorm:"column:staff_email" json:"staff_email"`
	CreatedAt           time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TenantSetting) TableName() string { return "tenant_setting" }

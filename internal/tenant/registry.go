// Package tenant selects the per-tenant database handle at the start of
// request or task handling. Handles are opened once at startup and passed
// explicitly; nothing in the engine reads an implicit current tenant.
package tenant

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Registry struct {
	mu      sync.RWMutex
	log     *logger.Logger
	handles map[string]*gorm.DB
}

// NewRegistry builds a registry over already-open handles. The caller owns
// the pool lifecycle.
func NewRegistry(log *logger.Logger, handles map[string]*gorm.DB) *Registry {
	r := &Registry{
		log:     log.With("component", "TenantRegistry"),
		handles: map[string]*gorm.DB{},
	}
	for name, db := range handles {
		r.handles[strings.TrimSpace(name)] = db
	}
	return r
}

// NewRegistryFromEnv opens one connection pool per configured tenant.
// TENANT_DATABASES holds semicolon-separated "name=dsn" pairs.
func NewRegistryFromEnv(log *logger.Logger) (*Registry, error) {
	raw := envutil.String("TENANT_DATABASES", "")
	if raw == "" {
		return nil, fmt.Errorf("missing TENANT_DATABASES")
	}
	r := &Registry{
		log:     log.With("component", "TenantRegistry"),
		handles: map[string]*gorm.DB{},
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, dsn, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed TENANT_DATABASES entry %q", pair)
		}
		db, err := openTenantDB(strings.TrimSpace(dsn))
		if err != nil {
			return nil, fmt.Errorf("open tenant %q: %w", name, err)
		}
		r.handles[strings.TrimSpace(name)] = db
	}
	if len(r.handles) == 0 {
		return nil, fmt.Errorf("TENANT_DATABASES configured no tenants")
	}
	r.log.Info("tenant registry ready", "tenants", len(r.handles))
	return r, nil
}

func openTenantDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// Handle returns the database for tenant name.
func (r *Registry) Handle(name string) (*gorm.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.handles[strings.TrimSpace(name)]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "unknown tenant %q", name)
	}
	return db, nil
}

// Names returns the configured tenant names in stable order; the worker
// iterates these when polling job queues.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AutoMigrateAll runs schema migration against every tenant database.
func (r *Registry) AutoMigrateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, db := range r.handles {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			return fmt.Errorf("tenant %q: enable uuid-ossp: %w", name, err)
		}
		if err := Migrate(db); err != nil {
			return fmt.Errorf("tenant %q: automigrate: %w", name, err)
		}
	}
	return nil
}

// Migrate runs schema migration against one tenant handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.UserGroup{},
		&types.UserGroupMember{},
		&types.TenantSetting{},

		&types.Course{},
		&types.CourseModule{},
		&types.Submodule{},
		&types.LearningPath{},
		&types.LPCourse{},
		&types.AdvancedLearningPath{},
		&types.ALPLearningPath{},
		&types.SkillTraveller{},
		&types.STCourse{},
		&types.Playground{},
		&types.PlaygroundGroup{},
		&types.PlaygroundGroupItem{},
		&types.Assignment{},
		&types.AssignmentGroup{},
		&types.AssignmentGroupItem{},
		&types.SkillOntology{},
		&types.SkillOntologyArtifact{},
		&types.Catalogue{},
		&types.CatalogueArtifact{},
		&types.CatalogueUserGroup{},
		&types.CatalogueUser{},

		&types.Assessment{},
		&types.AssessmentConfig{},
		&types.SubmissionConfig{},
		&types.AssessmentSchedule{},
		&types.AttemptResult{},

		&types.Enrollment{},
		&types.EnrollmentReminder{},
		&types.Tracker{},
		&types.Submission{},

		&types.Milestone{},
		&types.Badge{},
		&types.LeaderboardActivity{},
		&types.BadgeActivity{},
		&types.CourseExpert{},
		&types.CalendarEvent{},

		&types.JobRun{},
	)
}

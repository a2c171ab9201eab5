package assessment

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type ScheduleRepo interface {
	GetByTracker(dbc dbctx.Context, trackerID uuid.UUID) (*types.AssessmentSchedule, error)
	// GetByScheduleAndEmail locates the schedule a webhook refers to.
	GetByScheduleAndEmail(dbc dbctx.Context, scheduleID int64, userEmail string) (*types.AssessmentSchedule, error)
	Create(dbc dbctx.Context, s *types.AssessmentSchedule) (*types.AssessmentSchedule, error)
}

type scheduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScheduleRepo(db *gorm.DB, baseLog *logger.Logger) ScheduleRepo {
	return &scheduleRepo{db: db, log: baseLog.With("repo", "ScheduleRepo")}
}

func (r *scheduleRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *scheduleRepo) GetByTracker(dbc dbctx.Context, trackerID uuid.UUID) (*types.AssessmentSchedule, error) {
	var s types.AssessmentSchedule
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("tracker_id = ?", trackerID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepo) GetByScheduleAndEmail(dbc dbctx.Context, scheduleID int64, userEmail string) (*types.AssessmentSchedule, error) {
	var s types.AssessmentSchedule
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("schedule_id = ? AND LOWER(user_email) = ?", scheduleID, strings.ToLower(strings.TrimSpace(userEmail))).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepo) Create(dbc dbctx.Context, s *types.AssessmentSchedule) (*types.AssessmentSchedule, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// AttemptResultRepo appends provider attempts. Upserts key on
// (schedule row, attempt number) so pull and webhook ingestion can race.
type AttemptResultRepo interface {
	UpsertBatch(dbc dbctx.Context, results []*types.AttemptResult) error
	ListBySchedule(dbc dbctx.Context, scheduleRowID uuid.UUID) ([]*types.AttemptResult, error)
	CountBySchedule(dbc dbctx.Context, scheduleRowID uuid.UUID) (int64, error)
}

type attemptResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptResultRepo(db *gorm.DB, baseLog *logger.Logger) AttemptResultRepo {
	return &attemptResultRepo{db: db, log: baseLog.With("repo", "AttemptResultRepo")}
}

func (r *attemptResultRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *attemptResultRepo) UpsertBatch(dbc dbctx.Context, results []*types.AttemptResult) error {
	if len(results) == 0 {
		return nil
	}
	for _, res := range results {
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "schedule_row_id"}, {Name: "attempt_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"duration_secs", "total_questions", "answered_questions",
				"progress", "is_pass", "started_at", "ended_at",
			}),
		}).
		Create(&results).Error
}

func (r *attemptResultRepo) ListBySchedule(dbc dbctx.Context, scheduleRowID uuid.UUID) ([]*types.AttemptResult, error) {
	var out []*types.AttemptResult
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("schedule_row_id = ?", scheduleRowID).
		Order("attempt_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptResultRepo) CountBySchedule(dbc dbctx.Context, scheduleRowID uuid.UUID) (int64, error) {
	var n int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.AttemptResult{}).
		Where("schedule_row_id = ?", scheduleRowID).
		Count(&n).Error
	return n, err
}

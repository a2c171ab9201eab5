package assessment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type SubmissionRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	ListByTracker(dbc dbctx.Context, trackerID uuid.UUID) ([]*types.Submission, error)
	CountByTracker(dbc dbctx.Context, trackerID uuid.UUID) (int64, error)
	Create(dbc dbctx.Context, s *types.Submission) (*types.Submission, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *submissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	var s types.Submission
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepo) ListByTracker(dbc dbctx.Context, trackerID uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("tracker_id = ?", trackerID).
		Order("attempt ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionRepo) CountByTracker(dbc dbctx.Context, trackerID uuid.UUID) (int64, error) {
	var n int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Submission{}).
		Where("tracker_id = ?", trackerID).
		Count(&n).Error
	return n, err
}

func (r *submissionRepo) Create(dbc dbctx.Context, s *types.Submission) (*types.Submission, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *submissionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Submission{}).
		Where("id = ?", id).
		Updates(updates).Error
}

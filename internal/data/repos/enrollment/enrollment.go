package enrollment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type EnrollmentRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error)
	// FindForUserOrGroups returns the enrollment admitting the user into the
	// artifact either directly or through any of the given groups.
	FindForUserOrGroups(dbc dbctx.Context, userID uuid.UUID, groupIDs []uuid.UUID, ref types.ArtifactRef) (*types.Enrollment, error)
	Create(dbc dbctx.Context, e *types.Enrollment) (*types.Enrollment, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Enrollment, error)
	ListAdmittedWithEndDate(dbc dbctx.Context) ([]*types.Enrollment, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *enrollmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error) {
	var e types.Enrollment
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepo) FindForUserOrGroups(dbc dbctx.Context, userID uuid.UUID, groupIDs []uuid.UUID, ref types.ArtifactRef) (*types.Enrollment, error) {
	q := r.handle(dbc).WithContext(dbc.Ctx).
		Where("artifact_kind = ? AND artifact_id = ?", ref.Kind, ref.ID)
	if len(groupIDs) > 0 {
		q = q.Where("user_id = ? OR group_id IN ?", userID, groupIDs)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	var e types.Enrollment
	err := q.Order("created_at ASC").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepo) Create(dbc dbctx.Context, e *types.Enrollment) (*types.Enrollment, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (r *enrollmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *enrollmentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Enrollment, error) {
	var out []*types.Enrollment
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) ListAdmittedWithEndDate(dbc dbctx.Context) ([]*types.Enrollment, error) {
	var out []*types.Enrollment
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("is_admitted = ? AND end_date IS NOT NULL", true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Enrollment{}).Error
}

type ReminderRepo interface {
	GetByKind(dbc dbctx.Context, kind types.ArtifactKind) (*types.EnrollmentReminder, error)
	List(dbc dbctx.Context) ([]*types.EnrollmentReminder, error)
}

type reminderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReminderRepo(db *gorm.DB, baseLog *logger.Logger) ReminderRepo {
	return &reminderRepo{db: db, log: baseLog.With("repo", "ReminderRepo")}
}

func (r *reminderRepo) GetByKind(dbc dbctx.Context, kind types.ArtifactKind) (*types.EnrollmentReminder, error) {
	h := r.db
	if dbc.Tx != nil {
		h = dbc.Tx
	}
	var rem types.EnrollmentReminder
	err := h.WithContext(dbc.Ctx).Where("artifact_kind = ?", kind).First(&rem).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

func (r *reminderRepo) List(dbc dbctx.Context) ([]*types.EnrollmentReminder, error) {
	h := r.db
	if dbc.Tx != nil {
		h = dbc.Tx
	}
	var out []*types.EnrollmentReminder
	if err := h.WithContext(dbc.Ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

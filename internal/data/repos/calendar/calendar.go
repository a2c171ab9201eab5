package calendar

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type CalendarRepo interface {
	Create(dbc dbctx.Context, e *types.CalendarEvent) error
	// DeleteForArtifact removes the learner's events for the given artifact,
	// the unenroll cleanup path.
	DeleteForArtifact(dbc dbctx.Context, userID uuid.UUID, ref types.ArtifactRef) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.CalendarEvent, error)
}

type calendarRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalendarRepo(db *gorm.DB, baseLog *logger.Logger) CalendarRepo {
	return &calendarRepo{db: db, log: baseLog.With("repo", "CalendarRepo")}
}

func (r *calendarRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *calendarRepo) Create(dbc dbctx.Context, e *types.CalendarEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Create(e).Error
}

func (r *calendarRepo) DeleteForArtifact(dbc dbctx.Context, userID uuid.UUID, ref types.ArtifactRef) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND event_subtype = ? AND event_subtype_id = ?", userID, ref.Kind, ref.ID).
		Delete(&types.CalendarEvent{}).Error
}

func (r *calendarRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.CalendarEvent, error) {
	var out []*types.CalendarEvent
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("start_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package assessment

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type AssessmentRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error)
	ListByOwner(dbc dbctx.Context, ownerKind types.ArtifactKind, ownerID uuid.UUID) ([]*types.Assessment, error)
	ListFinalsByOwner(dbc dbctx.Context, ownerKind types.ArtifactKind, ownerID uuid.UUID) ([]*types.Assessment, error)
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{db: db, log: baseLog.With("repo", "AssessmentRepo")}
}

func (r *assessmentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *assessmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error) {
	var a types.Assessment
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assessmentRepo) ListByOwner(dbc dbctx.Context, ownerKind types.ArtifactKind, ownerID uuid.UUID) ([]*types.Assessment, error) {
	var out []*types.Assessment
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("owner_kind = ? AND owner_id = ?", ownerKind, ownerID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assessmentRepo) ListFinalsByOwner(dbc dbctx.Context, ownerKind types.ArtifactKind, ownerID uuid.UUID) ([]*types.Assessment, error) {
	var out []*types.Assessment
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("owner_kind = ? AND owner_id = ? AND kind = ?", ownerKind, ownerID, types.AssessmentFinal).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

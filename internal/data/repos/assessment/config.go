package assessment

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// ConfigRepo serves the ordered config resolution steps. Each lookup answers
// one scope; the resolver walks them most-specific first.
type ConfigRepo interface {
	FindExactArtifact(dbc dbctx.Context, ref types.ArtifactRef) (*types.AssessmentConfig, error)
	FindArtifactAttached(dbc dbctx.Context, ref types.ArtifactRef) (*types.AssessmentConfig, error)
	FindByCatalogues(dbc dbctx.Context, catalogueIDs []uuid.UUID) (*types.AssessmentConfig, error)
	FindTenantDefault(dbc dbctx.Context) (*types.AssessmentConfig, error)

	FindSubmissionExact(dbc dbctx.Context, ref types.ArtifactRef) (*types.SubmissionConfig, error)
	FindSubmissionAttached(dbc dbctx.Context, ref types.ArtifactRef) (*types.SubmissionConfig, error)
	FindSubmissionByCatalogues(dbc dbctx.Context, catalogueIDs []uuid.UUID) (*types.SubmissionConfig, error)
	FindSubmissionTenantDefault(dbc dbctx.Context) (*types.SubmissionConfig, error)
}

type configRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConfigRepo(db *gorm.DB, baseLog *logger.Logger) ConfigRepo {
	return &configRepo{db: db, log: baseLog.With("repo", "ConfigRepo")}
}

func (r *configRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func firstOrNil[T any](q *gorm.DB, out *T) (*T, error) {
	err := q.First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *configRepo) FindExactArtifact(dbc dbctx.Context, ref types.ArtifactRef) (*types.AssessmentConfig, error) {
	var c types.AssessmentConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ? AND artifact_kind = ? AND artifact_id = ?", types.ScopeExactArtifact, ref.Kind, ref.ID).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindArtifactAttached(dbc dbctx.Context, ref types.ArtifactRef) (*types.AssessmentConfig, error) {
	var c types.AssessmentConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ? AND artifact_kind = ? AND artifact_id = ?", types.ScopeArtifactAttached, ref.Kind, ref.ID).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindByCatalogues(dbc dbctx.Context, catalogueIDs []uuid.UUID) (*types.AssessmentConfig, error) {
	if len(catalogueIDs) == 0 {
		return nil, nil
	}
	var c types.AssessmentConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ? AND catalogue_id IN ?", types.ScopeCatalogue, catalogueIDs).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindTenantDefault(dbc dbctx.Context) (*types.AssessmentConfig, error) {
	var c types.AssessmentConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ?", types.ScopeTenantDefault).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindSubmissionExact(dbc dbctx.Context, ref types.ArtifactRef) (*types.SubmissionConfig, error) {
	var c types.SubmissionConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ? AND artifact_kind = ? AND artifact_id = ?", types.ScopeExactArtifact, ref.Kind, ref.ID).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindSubmissionAttached(dbc dbctx.Context, ref types.ArtifactRef) (*types.SubmissionConfig, error) {
	var c types.SubmissionConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ? AND artifact_kind = ? AND artifact_id = ?", types.ScopeArtifactAttached, ref.Kind, ref.ID).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindSubmissionByCatalogues(dbc dbctx.Context, catalogueIDs []uuid.UUID) (*types.SubmissionConfig, error) {
	if len(catalogueIDs) == 0 {
		return nil, nil
	}
	var c types.SubmissionConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ? AND catalogue_id IN ?", types.ScopeCatalogue, catalogueIDs).
		Order("updated_at DESC"), &c)
}

func (r *configRepo) FindSubmissionTenantDefault(dbc dbctx.Context) (*types.SubmissionConfig, error) {
	var c types.SubmissionConfig
	return firstOrNil(r.handle(dbc).WithContext(dbc.Ctx).
		Where("scope = ?", types.ScopeTenantDefault).
		Order("updated_at DESC"), &c)
}

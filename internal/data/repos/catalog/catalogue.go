package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// CatalogueRepo answers the self-enrollment question: does any unlocked,
// self-enroll-enabled catalogue list this artifact for this learner or one
// of their groups?
type CatalogueRepo interface {
	HasSelfEnrollCatalogue(dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID, groupIDs []uuid.UUID) (bool, error)
	ListAssessmentConfigCatalogueIDs(dbc dbctx.Context, userID uuid.UUID, groupIDs []uuid.UUID) ([]uuid.UUID, error)
}

type catalogueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogueRepo(db *gorm.DB, baseLog *logger.Logger) CatalogueRepo {
	return &catalogueRepo{db: db, log: baseLog.With("repo", "CatalogueRepo")}
}

func (r *catalogueRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *catalogueRepo) HasSelfEnrollCatalogue(dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID, groupIDs []uuid.UUID) (bool, error) {
	ids, err := r.visibleCatalogueIDs(dbc, userID, groupIDs, true)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	var n int64
	err = r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.CatalogueArtifact{}).
		Where("catalogue_id IN ? AND artifact_kind = ? AND artifact_id = ?", ids, ref.Kind, ref.ID).
		Count(&n).Error
	return n > 0, err
}

// ListAssessmentConfigCatalogueIDs returns every catalogue visible to the
// learner, for the catalogue step of assessment-config resolution.
func (r *catalogueRepo) ListAssessmentConfigCatalogueIDs(dbc dbctx.Context, userID uuid.UUID, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	return r.visibleCatalogueIDs(dbc, userID, groupIDs, false)
}

func (r *catalogueRepo) visibleCatalogueIDs(dbc dbctx.Context, userID uuid.UUID, groupIDs []uuid.UUID, selfEnrollOnly bool) ([]uuid.UUID, error) {
	h := r.handle(dbc).WithContext(dbc.Ctx)

	var direct []uuid.UUID
	if err := h.Model(&types.CatalogueUser{}).
		Where("user_id = ?", userID).
		Pluck("catalogue_id", &direct).Error; err != nil {
		return nil, err
	}
	var viaGroups []uuid.UUID
	if len(groupIDs) > 0 {
		if err := h.Model(&types.CatalogueUserGroup{}).
			Where("group_id IN ?", groupIDs).
			Pluck("catalogue_id", &viaGroups).Error; err != nil {
			return nil, err
		}
	}
	candidates := append(direct, viaGroups...)
	if len(candidates) == 0 {
		return nil, nil
	}

	q := h.Model(&types.Catalogue{}).
		Where("id IN ? AND is_locked = ?", candidates, false)
	if selfEnrollOnly {
		q = q.Where("is_self_enrollment = ?", true)
	}
	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

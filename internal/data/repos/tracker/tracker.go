package tracker

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// TrackerRepo persists per-learner progress nodes. The unique index on
// (user, artifact kind, artifact id) is the one-tracker-per-artifact
// guarantee; Upsert races resolve to the surviving row.
type TrackerRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Tracker, error)
	GetByUserArtifact(dbc dbctx.Context, userID uuid.UUID, ref types.ArtifactRef) (*types.Tracker, error)
	ListByUserKindIDs(dbc dbctx.Context, userID uuid.UUID, kind types.ArtifactKind, artifactIDs []uuid.UUID) ([]*types.Tracker, error)
	ListByUserKind(dbc dbctx.Context, userID uuid.UUID, kind types.ArtifactKind) ([]*types.Tracker, error)
	ListChildren(dbc dbctx.Context, parentID uuid.UUID) ([]*types.Tracker, error)
	Upsert(dbc dbctx.Context, t *types.Tracker) (*types.Tracker, bool, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Tracker, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type trackerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackerRepo(db *gorm.DB, baseLog *logger.Logger) TrackerRepo {
	return &trackerRepo{db: db, log: baseLog.With("repo", "TrackerRepo")}
}

func (r *trackerRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *trackerRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Tracker, error) {
	var t types.Tracker
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *trackerRepo) GetByUserArtifact(dbc dbctx.Context, userID uuid.UUID, ref types.ArtifactRef) (*types.Tracker, error) {
	var t types.Tracker
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND artifact_kind = ? AND artifact_id = ?", userID, ref.Kind, ref.ID).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *trackerRepo) ListByUserKindIDs(dbc dbctx.Context, userID uuid.UUID, kind types.ArtifactKind, artifactIDs []uuid.UUID) ([]*types.Tracker, error) {
	var out []*types.Tracker
	if len(artifactIDs) == 0 {
		return out, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND artifact_kind = ? AND artifact_id IN ?", userID, kind, artifactIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trackerRepo) ListByUserKind(dbc dbctx.Context, userID uuid.UUID, kind types.ArtifactKind) ([]*types.Tracker, error) {
	var out []*types.Tracker
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND artifact_kind = ?", userID, kind).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trackerRepo) ListChildren(dbc dbctx.Context, parentID uuid.UUID) ([]*types.Tracker, error) {
	var out []*types.Tracker
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("parent_id = ?", parentID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert returns the existing tracker for (user, artifact) or creates one.
// Creation is rejected when the kind requires a parent tracker and none is
// referenced; the missing ancestor must be started first.
func (r *trackerRepo) Upsert(dbc dbctx.Context, t *types.Tracker) (*types.Tracker, bool, error) {
	if existing, err := r.GetByUserArtifact(dbc, t.UserID, t.Ref()); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	if types.RequiredParentKind(t.ArtifactKind) != "" && t.ParentID == nil {
		return nil, false, apperr.Newf(apperr.KindValidation,
			"tracker for %s requires a %s tracker", t.ArtifactKind, types.RequiredParentKind(t.ArtifactKind))
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(t).Error
	if err != nil {
		return nil, false, err
	}
	// DoNothing reports no error on conflict; refetch to learn which row won.
	won, err := r.GetByUserArtifact(dbc, t.UserID, t.Ref())
	if err != nil {
		return nil, false, err
	}
	if won == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return won, won.ID == t.ID, nil
}

// LockByID loads a tracker under FOR UPDATE. Callers must already be inside
// a transaction; the lock scopes the aggregation pass over this tracker and
// its ancestors.
func (r *trackerRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Tracker, error) {
	var t types.Tracker
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *trackerRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Tracker{}).
		Where("id = ?", id).
		Updates(updates).Error
}

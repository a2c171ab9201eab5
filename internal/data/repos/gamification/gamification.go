package gamification

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type MilestoneRepo interface {
	GetByName(dbc dbctx.Context, name types.MilestoneName) (*types.Milestone, error)
}

type milestoneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMilestoneRepo(db *gorm.DB, baseLog *logger.Logger) MilestoneRepo {
	return &milestoneRepo{db: db, log: baseLog.With("repo", "MilestoneRepo")}
}

func (r *milestoneRepo) GetByName(dbc dbctx.Context, name types.MilestoneName) (*types.Milestone, error) {
	h := r.db
	if dbc.Tx != nil {
		h = dbc.Tx
	}
	var m types.Milestone
	err := h.WithContext(dbc.Ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// BadgeRepo matches badge bands. Score and duration bands are inclusive on
// both ends; callers pass the value already clamped to [0,100] or seconds.
type BadgeRepo interface {
	FindAssessmentBadge(dbc dbctx.Context, proficiency types.Proficiency, score float64) (*types.Badge, error)
	FindVideoBadge(dbc dbctx.Context, proficiency types.Proficiency, watchedSecs float64) (*types.Badge, error)
}

type badgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBadgeRepo(db *gorm.DB, baseLog *logger.Logger) BadgeRepo {
	return &badgeRepo{db: db, log: baseLog.With("repo", "BadgeRepo")}
}

func (r *badgeRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *badgeRepo) findInBand(dbc dbctx.Context, category types.BadgeCategory, proficiency types.Proficiency, value float64) (*types.Badge, error) {
	var b types.Badge
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("category = ? AND proficiency = ? AND from_range <= ? AND to_range >= ?", category, proficiency, value, value).
		Order("points DESC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *badgeRepo) FindAssessmentBadge(dbc dbctx.Context, proficiency types.Proficiency, score float64) (*types.Badge, error) {
	return r.findInBand(dbc, types.BadgeCategoryAssessment, proficiency, score)
}

func (r *badgeRepo) FindVideoBadge(dbc dbctx.Context, proficiency types.Proficiency, watchedSecs float64) (*types.Badge, error) {
	return r.findInBand(dbc, types.BadgeCategoryVideo, proficiency, watchedSecs)
}

// LeaderboardRepo writes milestone awards. Award is idempotent against the
// dedupe key the milestone implies.
type LeaderboardRepo interface {
	Exists(dbc dbctx.Context, userID uuid.UUID, name types.MilestoneName, artifact *types.ArtifactRef) (bool, error)
	Create(dbc dbctx.Context, a *types.LeaderboardActivity) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.LeaderboardActivity, error)
}

type leaderboardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLeaderboardRepo(db *gorm.DB, baseLog *logger.Logger) LeaderboardRepo {
	return &leaderboardRepo{db: db, log: baseLog.With("repo", "LeaderboardRepo")}
}

func (r *leaderboardRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *leaderboardRepo) Exists(dbc dbctx.Context, userID uuid.UUID, name types.MilestoneName, artifact *types.ArtifactRef) (bool, error) {
	q := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.LeaderboardActivity{}).
		Where("user_id = ? AND milestone = ?", userID, name)
	if artifact != nil {
		q = q.Where("artifact_kind = ? AND artifact_id = ?", artifact.Kind, artifact.ID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *leaderboardRepo) Create(dbc dbctx.Context, a *types.LeaderboardActivity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Create(a).Error
}

func (r *leaderboardRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.LeaderboardActivity, error) {
	var out []*types.LeaderboardActivity
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// BadgeActivityRepo upserts badge awards on the learning key. Higher-point
// awards supersede, lower ones are kept as-is.
type BadgeActivityRepo interface {
	// FindForLearning ignores the badge tier so a recompute can locate the
	// previously awarded row and upgrade it in place.
	FindForLearning(dbc dbctx.Context, userID uuid.UUID, category types.BadgeCategory, learningType types.ArtifactKind, learningID, trackerID uuid.UUID) (*types.BadgeActivity, error)
	Create(dbc dbctx.Context, a *types.BadgeActivity) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.BadgeActivity, error)
}

type badgeActivityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBadgeActivityRepo(db *gorm.DB, baseLog *logger.Logger) BadgeActivityRepo {
	return &badgeActivityRepo{db: db, log: baseLog.With("repo", "BadgeActivityRepo")}
}

func (r *badgeActivityRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *badgeActivityRepo) FindForLearning(dbc dbctx.Context, userID uuid.UUID, category types.BadgeCategory, learningType types.ArtifactKind, learningID, trackerID uuid.UUID) (*types.BadgeActivity, error) {
	var a types.BadgeActivity
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND category = ? AND learning_type = ? AND learning_id = ? AND tracker_id = ?",
			userID, category, learningType, learningID, trackerID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *badgeActivityRepo) Create(dbc dbctx.Context, a *types.BadgeActivity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Create(a).Error
}

func (r *badgeActivityRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.BadgeActivity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *badgeActivityRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.BadgeActivity, error) {
	var out []*types.BadgeActivity
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ExpertRepo interface {
	Exists(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error)
	Create(dbc dbctx.Context, e *types.CourseExpert) error
}

type expertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExpertRepo(db *gorm.DB, baseLog *logger.Logger) ExpertRepo {
	return &expertRepo{db: db, log: baseLog.With("repo", "ExpertRepo")}
}

func (r *expertRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *expertRepo) Exists(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error) {
	var n int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.CourseExpert{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&n).Error
	return n > 0, err
}

func (r *expertRepo) Create(dbc dbctx.Context, e *types.CourseExpert) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Create(e).Error
}

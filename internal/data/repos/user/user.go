package user

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type UserRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error)
	GroupIDsForUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
	MemberIDsOfGroup(dbc dbctx.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	var u types.User
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	var u types.User
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepo) GroupIDsForUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.UserGroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userRepo) MemberIDsOfGroup(dbc dbctx.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.UserGroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

type TenantSettingRepo interface {
	Get(dbc dbctx.Context) (*types.TenantSetting, error)
}

type tenantSettingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTenantSettingRepo(db *gorm.DB, baseLog *logger.Logger) TenantSettingRepo {
	return &tenantSettingRepo{db: db, log: baseLog.With("repo", "TenantSettingRepo")}
}

func (r *tenantSettingRepo) Get(dbc dbctx.Context) (*types.TenantSetting, error) {
	h := r.db
	if dbc.Tx != nil {
		h = dbc.Tx
	}
	var s types.TenantSetting
	err := h.WithContext(dbc.Ctx).Order("created_at ASC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &types.TenantSetting{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

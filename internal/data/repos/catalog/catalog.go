package catalog

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// CatalogRepo reads local artifact structure: parents, ordered children,
// and the flags the unlock evaluator and aggregator need. Content bodies
// live elsewhere; the engine only consumes shape.
type CatalogRepo interface {
	GetCourse(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetCourseModule(dbc dbctx.Context, id uuid.UUID) (*types.CourseModule, error)
	GetSubmodule(dbc dbctx.Context, id uuid.UUID) (*types.Submodule, error)
	GetLearningPath(dbc dbctx.Context, id uuid.UUID) (*types.LearningPath, error)
	GetAdvancedLearningPath(dbc dbctx.Context, id uuid.UUID) (*types.AdvancedLearningPath, error)
	GetSkillTraveller(dbc dbctx.Context, id uuid.UUID) (*types.SkillTraveller, error)
	GetPlayground(dbc dbctx.Context, id uuid.UUID) (*types.Playground, error)
	GetPlaygroundGroup(dbc dbctx.Context, id uuid.UUID) (*types.PlaygroundGroup, error)
	GetAssignment(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error)
	GetAssignmentGroup(dbc dbctx.Context, id uuid.UUID) (*types.AssignmentGroup, error)
	GetSkillOntology(dbc dbctx.Context, id uuid.UUID) (*types.SkillOntology, error)

	ListModulesByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.CourseModule, error)
	ListSubmodulesByModule(dbc dbctx.Context, moduleID uuid.UUID) ([]*types.Submodule, error)
	ListLPCourses(dbc dbctx.Context, learningPathID uuid.UUID) ([]*types.LPCourse, error)
	ListALPLearningPaths(dbc dbctx.Context, alpID uuid.UUID) ([]*types.ALPLearningPath, error)
	ListSTCourses(dbc dbctx.Context, travellerID uuid.UUID) ([]*types.STCourse, error)
	ListAssignmentGroupItems(dbc dbctx.Context, groupID uuid.UUID) ([]*types.AssignmentGroupItem, error)
	ListOntologyArtifacts(dbc dbctx.Context, ontologyID uuid.UUID) ([]*types.SkillOntologyArtifact, error)

	CountVideoSubmodules(dbc dbctx.Context, courseID uuid.UUID) (int64, error)
	FindIDByKindAndCode(dbc dbctx.Context, kind types.ArtifactKind, code string) (uuid.UUID, error)
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{db: db, log: baseLog.With("repo", "CatalogRepo")}
}

func (r *catalogRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func getOne[T any](r *catalogRepo, dbc dbctx.Context, id uuid.UUID) (*T, error) {
	var row T
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *catalogRepo) GetCourse(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	return getOne[types.Course](r, dbc, id)
}

func (r *catalogRepo) GetCourseModule(dbc dbctx.Context, id uuid.UUID) (*types.CourseModule, error) {
	return getOne[types.CourseModule](r, dbc, id)
}

func (r *catalogRepo) GetSubmodule(dbc dbctx.Context, id uuid.UUID) (*types.Submodule, error) {
	return getOne[types.Submodule](r, dbc, id)
}

func (r *catalogRepo) GetLearningPath(dbc dbctx.Context, id uuid.UUID) (*types.LearningPath, error) {
	return getOne[types.LearningPath](r, dbc, id)
}

func (r *catalogRepo) GetAdvancedLearningPath(dbc dbctx.Context, id uuid.UUID) (*types.AdvancedLearningPath, error) {
	return getOne[types.AdvancedLearningPath](r, dbc, id)
}

func (r *catalogRepo) GetSkillTraveller(dbc dbctx.Context, id uuid.UUID) (*types.SkillTraveller, error) {
	return getOne[types.SkillTraveller](r, dbc, id)
}

func (r *catalogRepo) GetPlayground(dbc dbctx.Context, id uuid.UUID) (*types.Playground, error) {
	return getOne[types.Playground](r, dbc, id)
}

func (r *catalogRepo) GetPlaygroundGroup(dbc dbctx.Context, id uuid.UUID) (*types.PlaygroundGroup, error) {
	return getOne[types.PlaygroundGroup](r, dbc, id)
}

func (r *catalogRepo) GetAssignment(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error) {
	return getOne[types.Assignment](r, dbc, id)
}

func (r *catalogRepo) GetAssignmentGroup(dbc dbctx.Context, id uuid.UUID) (*types.AssignmentGroup, error) {
	return getOne[types.AssignmentGroup](r, dbc, id)
}

func (r *catalogRepo) GetSkillOntology(dbc dbctx.Context, id uuid.UUID) (*types.SkillOntology, error) {
	return getOne[types.SkillOntology](r, dbc, id)
}

func (r *catalogRepo) ListModulesByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.CourseModule, error) {
	var out []*types.CourseModule
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) ListSubmodulesByModule(dbc dbctx.Context, moduleID uuid.UUID) ([]*types.Submodule, error) {
	var out []*types.Submodule
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("course_module_id = ?", moduleID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) ListLPCourses(dbc dbctx.Context, learningPathID uuid.UUID) ([]*types.LPCourse, error) {
	var out []*types.LPCourse
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("learning_path_id = ?", learningPathID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) ListALPLearningPaths(dbc dbctx.Context, alpID uuid.UUID) ([]*types.ALPLearningPath, error) {
	var out []*types.ALPLearningPath
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("advanced_learning_path_id = ?", alpID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) ListSTCourses(dbc dbctx.Context, travellerID uuid.UUID) ([]*types.STCourse, error) {
	var out []*types.STCourse
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("skill_traveller_id = ?", travellerID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) ListAssignmentGroupItems(dbc dbctx.Context, groupID uuid.UUID) ([]*types.AssignmentGroupItem, error) {
	var out []*types.AssignmentGroupItem
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("assignment_group_id = ?", groupID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) ListOntologyArtifacts(dbc dbctx.Context, ontologyID uuid.UUID) ([]*types.SkillOntologyArtifact, error) {
	var out []*types.SkillOntologyArtifact
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("skill_ontology_id = ?", ontologyID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepo) CountVideoSubmodules(dbc dbctx.Context, courseID uuid.UUID) (int64, error) {
	var n int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Submodule{}).
		Joins("JOIN course_module ON course_module.id = submodule.course_module_id").
		Where("course_module.course_id = ? AND submodule.type = ?", courseID, types.SubmoduleVideo).
		Count(&n).Error
	return n, err
}

// FindIDByKindAndCode resolves a bulk-sheet artifact code to a local id.
func (r *catalogRepo) FindIDByKindAndCode(dbc dbctx.Context, kind types.ArtifactKind, code string) (uuid.UUID, error) {
	var table string
	switch kind {
	case types.KindCourse:
		table = "course"
	case types.KindLearningPath:
		table = "learning_path"
	case types.KindAdvancedLearningPath:
		table = "advanced_learning_path"
	case types.KindSkillTraveller:
		table = "skill_traveller"
	case types.KindPlayground:
		table = "playground"
	case types.KindPlaygroundGroup:
		table = "playground_group"
	case types.KindAssignment:
		table = "assignment"
	case types.KindAssignmentGroup:
		table = "assignment_group"
	default:
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	var id uuid.UUID
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Table(table).
		Where("code = ? AND deleted_at IS NULL", code).
		Limit(1).
		Pluck("id", &id).Error
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return id, nil
}

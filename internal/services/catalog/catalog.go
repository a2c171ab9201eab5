// Package catalog is the read-only artifact gateway. Local rows and remote
// content-service artifacts normalize into one shape; callers never learn
// which side an artifact came from.
package catalog

import (
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/clients/ccms"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// Artifact is the normalized metadata shape for every kind.
type Artifact struct {
	Ref                      types.ArtifactRef
	Name                     string
	Code                     string
	Proficiency              types.Proficiency
	IsDependenciesSequential bool
	IsCertificateEnabled     bool
	AuthorEmails             string
	Type                     types.SubmoduleType
	EvaluationType           types.EvaluationType
	DurationSecs             int
	AllowedAttempts          *int
	PassPercentage           float64
	Tool                     string
	VMName                   string
	SkuID                    string
	StartDate                *time.Time
	EndDate                  *time.Time
}

// Child is one ordered member of a parent artifact.
type Child struct {
	Ref          types.ArtifactRef
	Sequence     int
	IsMandatory  bool
	Type         types.SubmoduleType
	DurationSecs int
	IsLockActive bool
	UnlockDate   *time.Time
}

type Service interface {
	GetArtifact(dbc dbctx.Context, ref types.ArtifactRef) (*Artifact, error)
	ListChildren(dbc dbctx.Context, ref types.ArtifactRef, childKind types.ArtifactKind) ([]Child, error)
	// CountVideoSubmodules is used by the video badge rule for point splits.
	CountVideoSubmodules(dbc dbctx.Context, courseRef types.ArtifactRef) (int, error)
}

type service struct {
	log  *logger.Logger
	repo catalogrepo.CatalogRepo
	ccms ccms.Client
}

func NewService(log *logger.Logger, repo catalogrepo.CatalogRepo, remote ccms.Client) Service {
	return &service{
		log:  log.With("service", "CatalogService"),
		repo: repo,
		ccms: remote,
	}
}

func (s *service) GetArtifact(dbc dbctx.Context, ref types.ArtifactRef) (*Artifact, error) {
	if ref.IsZero() {
		return nil, apperr.Validation("empty artifact reference")
	}
	if ref.IsExternal {
		return s.remoteArtifact(dbc, ref)
	}
	return s.localArtifact(dbc, ref)
}

func (s *service) localArtifact(dbc dbctx.Context, ref types.ArtifactRef) (*Artifact, error) {
	a := &Artifact{Ref: ref}
	switch ref.Kind {
	case types.KindCourse:
		row, err := s.repo.GetCourse(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.Proficiency = row.Proficiency
		a.IsDependenciesSequential = row.IsDependenciesSequential
		a.IsCertificateEnabled = row.IsCertificateEnabled
		a.AuthorEmails = row.AuthorEmails
		a.StartDate, a.EndDate = row.StartDate, row.EndDate
	case types.KindCourseModule:
		row, err := s.repo.GetCourseModule(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name = row.Name
	case types.KindSubmodule:
		row, err := s.repo.GetSubmodule(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name = row.Name
		a.Type = row.Type
		a.DurationSecs = row.DurationSecs
		a.EvaluationType = row.EvaluationType
	case types.KindLearningPath:
		row, err := s.repo.GetLearningPath(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.Proficiency = row.Proficiency
		a.IsDependenciesSequential = row.IsDependenciesSequential
		a.IsCertificateEnabled = row.IsCertificateEnabled
		a.StartDate, a.EndDate = row.StartDate, row.EndDate
	case types.KindAdvancedLearningPath:
		row, err := s.repo.GetAdvancedLearningPath(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.Proficiency = row.Proficiency
		a.IsDependenciesSequential = row.IsDependenciesSequential
		a.IsCertificateEnabled = row.IsCertificateEnabled
	case types.KindSkillTraveller:
		row, err := s.repo.GetSkillTraveller(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.Proficiency = row.Proficiency
		a.IsDependenciesSequential = row.IsDependenciesSequential
	case types.KindPlayground:
		row, err := s.repo.GetPlayground(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.VMName, a.SkuID = row.VMName, row.SkuID
	case types.KindPlaygroundGroup:
		row, err := s.repo.GetPlaygroundGroup(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
	case types.KindAssignment:
		row, err := s.repo.GetAssignment(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.EvaluationType = row.EvaluationType
		a.AllowedAttempts = row.AllowedAttempts
		a.PassPercentage = row.PassPercentage
		a.AuthorEmails = row.AuthorEmails
		a.Tool = row.Tool
	case types.KindAssignmentGroup:
		row, err := s.repo.GetAssignmentGroup(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name, a.Code = row.Name, row.Code
		a.IsDependenciesSequential = row.IsDependenciesSequential
	case types.KindSkillOntology:
		row, err := s.repo.GetSkillOntology(dbc, ref.ID)
		if err != nil || row == nil {
			return nil, orNotFound(err, ref)
		}
		a.Name = row.Name
	default:
		return nil, apperr.Newf(apperr.KindValidation, "unknown artifact kind %q", ref.Kind)
	}
	return a, nil
}

func (s *service) remoteArtifact(dbc dbctx.Context, ref types.ArtifactRef) (*Artifact, error) {
	d, err := s.ccms.FetchDetail(dbc.Ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Ref:                      ref,
		Name:                     d.Name,
		Code:                     d.Code,
		Proficiency:              d.Proficiency,
		IsDependenciesSequential: d.IsDependenciesSequential,
		IsCertificateEnabled:     d.IsCertificateEnabled,
		AuthorEmails:             d.AuthorEmails,
		Type:                     d.Type,
		EvaluationType:           d.EvaluationType,
		DurationSecs:             d.DurationSecs,
		AllowedAttempts:          d.AllowedAttempts,
		PassPercentage:           d.PassPercentage,
	}, nil
}

func (s *service) ListChildren(dbc dbctx.Context, ref types.ArtifactRef, childKind types.ArtifactKind) ([]Child, error) {
	if ref.IsExternal {
		return s.remoteChildren(dbc, ref, childKind)
	}
	return s.localChildren(dbc, ref, childKind)
}

func (s *service) localChildren(dbc dbctx.Context, ref types.ArtifactRef, childKind types.ArtifactKind) ([]Child, error) {
	var out []Child
	switch {
	case ref.Kind == types.KindCourse && childKind == types.KindCourseModule:
		rows, err := s.repo.ListModulesByCourse(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			out = append(out, Child{
				Ref:         types.LocalRef(types.KindCourseModule, m.ID),
				Sequence:    m.Sequence,
				IsMandatory: m.IsMandatory,
			})
		}
	case ref.Kind == types.KindCourseModule && childKind == types.KindSubmodule:
		rows, err := s.repo.ListSubmodulesByModule(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for _, sm := range rows {
			out = append(out, Child{
				Ref:          types.LocalRef(types.KindSubmodule, sm.ID),
				Sequence:     sm.Sequence,
				IsMandatory:  sm.IsMandatory,
				Type:         sm.Type,
				DurationSecs: sm.DurationSecs,
			})
		}
	case ref.Kind == types.KindLearningPath && childKind == types.KindCourse:
		rows, err := s.repo.ListLPCourses(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for _, lc := range rows {
			out = append(out, Child{
				Ref:          types.LocalRef(types.KindCourse, lc.CourseID),
				Sequence:     lc.Sequence,
				IsMandatory:  lc.IsMandatory,
				IsLockActive: lc.IsLockActive,
				UnlockDate:   lc.CourseUnlockDate,
			})
		}
	case ref.Kind == types.KindAdvancedLearningPath && childKind == types.KindLearningPath:
		rows, err := s.repo.ListALPLearningPaths(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for _, al := range rows {
			out = append(out, Child{
				Ref:         types.LocalRef(types.KindLearningPath, al.LearningPathID),
				Sequence:    al.Sequence,
				IsMandatory: al.IsMandatory,
			})
		}
	case ref.Kind == types.KindSkillTraveller && childKind == types.KindCourse:
		rows, err := s.repo.ListSTCourses(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for _, sc := range rows {
			out = append(out, Child{
				Ref:         types.LocalRef(types.KindCourse, sc.CourseID),
				Sequence:    sc.Sequence,
				IsMandatory: sc.IsMandatory,
			})
		}
	case ref.Kind == types.KindAssignmentGroup && childKind == types.KindAssignment:
		rows, err := s.repo.ListAssignmentGroupItems(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for _, gi := range rows {
			out = append(out, Child{
				Ref:         types.LocalRef(types.KindAssignment, gi.AssignmentID),
				Sequence:    gi.Sequence,
				IsMandatory: gi.IsMandatory,
			})
		}
	case ref.Kind == types.KindSkillOntology:
		rows, err := s.repo.ListOntologyArtifacts(dbc, ref.ID)
		if err != nil {
			return nil, err
		}
		for i, oa := range rows {
			if childKind != "" && oa.ArtifactKind != childKind {
				continue
			}
			out = append(out, Child{
				Ref:      types.ArtifactRef{Kind: oa.ArtifactKind, ID: oa.ArtifactID, IsExternal: oa.IsExternal},
				Sequence: i + 1,
			})
		}
	default:
		return nil, apperr.Newf(apperr.KindValidation, "kind %q has no %q children", ref.Kind, childKind)
	}
	return out, nil
}

func (s *service) remoteChildren(dbc dbctx.Context, ref types.ArtifactRef, childKind types.ArtifactKind) ([]Child, error) {
	d, err := s.ccms.FetchDetail(dbc.Ctx, ref)
	if err != nil {
		return nil, err
	}
	var out []Child
	for _, c := range d.Children {
		if childKind != "" && c.Kind != childKind {
			continue
		}
		out = append(out, Child{
			Ref:          types.ExternalRef(c.Kind, c.ID),
			Sequence:     c.Sequence,
			IsMandatory:  c.IsMandatory,
			Type:         c.Type,
			DurationSecs: c.DurationSecs,
			IsLockActive: c.IsLockActive,
			UnlockDate:   c.UnlockDate,
		})
	}
	return out, nil
}

func (s *service) CountVideoSubmodules(dbc dbctx.Context, courseRef types.ArtifactRef) (int, error) {
	if !courseRef.IsExternal {
		n, err := s.repo.CountVideoSubmodules(dbc, courseRef.ID)
		return int(n), err
	}
	modules, err := s.remoteChildren(dbc, courseRef, types.KindCourseModule)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range modules {
		subs, err := s.remoteChildren(dbc, m.Ref, types.KindSubmodule)
		if err != nil {
			return 0, err
		}
		for _, sm := range subs {
			if sm.Type == types.SubmoduleVideo {
				total++
			}
		}
	}
	return total, nil
}

func orNotFound(err error, ref types.ArtifactRef) error {
	if err != nil {
		return err
	}
	return apperr.Newf(apperr.KindNotFound, "artifact %s not found", ref)
}

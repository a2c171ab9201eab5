// Package configresolver picks the effective assessment or submission
// configuration for an artifact. Resolution walks a fixed order, most
// specific first; the first hit wins.
package configresolver

import (
	"github.com/google/uuid"

	assessmentrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/assessment"
	catalogrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/catalog"
	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

type Service interface {
	// ResolveAssessment walks exact artifact, artifact attached, learner
	// catalogues, tenant default. ConfigMissing when nothing matches.
	ResolveAssessment(dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID, groupIDs []uuid.UUID) (*types.AssessmentConfig, error)
	ResolveSubmission(dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID, groupIDs []uuid.UUID) (*types.SubmissionConfig, error)
}

type service struct {
	log        *logger.Logger
	configs    assessmentrepo.ConfigRepo
	catalogues catalogrepo.CatalogueRepo
}

func NewService(log *logger.Logger, configs assessmentrepo.ConfigRepo, catalogues catalogrepo.CatalogueRepo) Service {
	return &service{
		log:        log.With("service", "ConfigResolver"),
		configs:    configs,
		catalogues: catalogues,
	}
}

func (s *service) ResolveAssessment(dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID, groupIDs []uuid.UUID) (*types.AssessmentConfig, error) {
	if c, err := s.configs.FindExactArtifact(dbc, ref); err != nil || c != nil {
		return c, err
	}
	if c, err := s.configs.FindArtifactAttached(dbc, ref); err != nil || c != nil {
		return c, err
	}
	catalogueIDs, err := s.catalogues.ListAssessmentConfigCatalogueIDs(dbc, userID, groupIDs)
	if err != nil {
		return nil, err
	}
	if c, err := s.configs.FindByCatalogues(dbc, catalogueIDs); err != nil || c != nil {
		return c, err
	}
	if c, err := s.configs.FindTenantDefault(dbc); err != nil || c != nil {
		return c, err
	}
	return nil, apperr.Newf(apperr.KindConfigMissing, "no assessment config resolves for %s", ref)
}

func (s *service) ResolveSubmission(dbc dbctx.Context, ref types.ArtifactRef, userID uuid.UUID, groupIDs []uuid.UUID) (*types.SubmissionConfig, error) {
	if c, err := s.configs.FindSubmissionExact(dbc, ref); err != nil || c != nil {
		return c, err
	}
	if c, err := s.configs.FindSubmissionAttached(dbc, ref); err != nil || c != nil {
		return c, err
	}
	catalogueIDs, err := s.catalogues.ListAssessmentConfigCatalogueIDs(dbc, userID, groupIDs)
	if err != nil {
		return nil, err
	}
	if c, err := s.configs.FindSubmissionByCatalogues(dbc, catalogueIDs); err != nil || c != nil {
		return c, err
	}
	if c, err := s.configs.FindSubmissionTenantDefault(dbc); err != nil || c != nil {
		return c, err
	}
	return nil, apperr.Newf(apperr.KindConfigMissing, "no submission config resolves for %s", ref)
}

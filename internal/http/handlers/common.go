// Package handlers exposes the engine over HTTP. Handlers stay thin: bind,
// resolve the caller, call the owning service, map the error.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/http/middleware"
	"github.com/learnsphere/learnsphere-backend/internal/http/response"
	"github.com/learnsphere/learnsphere-backend/internal/platform/requestdata"
)

// caller returns the authenticated request data and the tenant database
// handle, or writes the failure response and returns false.
func caller(c *gin.Context) (*requestdata.RequestData, *gorm.DB, bool) {
	rd := requestdata.Get(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, nil, false
	}
	v, ok := c.Get(middleware.TenantDBKey)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, nil, false
	}
	db, ok := v.(*gorm.DB)
	if !ok || db == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, nil, false
	}
	return rd, db, true
}

// pathUUID parses one UUID path parameter, writing a 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_id", err)
		return uuid.Nil, false
	}
	return id, true
}

var knownKinds = map[types.ArtifactKind]bool{
	types.KindCourse:               true,
	types.KindCourseModule:         true,
	types.KindSubmodule:            true,
	types.KindLearningPath:         true,
	types.KindAdvancedLearningPath: true,
	types.KindSkillTraveller:       true,
	types.KindPlayground:           true,
	types.KindPlaygroundGroup:      true,
	types.KindAssignment:           true,
	types.KindAssignmentGroup:      true,
	types.KindAssessment:           true,
	types.KindSkillOntology:        true,
}

// artifactRef validates a (kind, id) pair from a bound request body.
func artifactRef(c *gin.Context, kind string, id uuid.UUID) (types.ArtifactRef, bool) {
	k := types.ArtifactKind(kind)
	if !knownKinds[k] {
		response.RespondError(c, http.StatusBadRequest, "bad_artifact_kind", nil)
		return types.ArtifactRef{}, false
	}
	return types.ArtifactRef{Kind: k, ID: id}, true
}

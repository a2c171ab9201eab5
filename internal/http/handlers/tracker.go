package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/learnsphere/learnsphere-backend/internal/domain"
	"github.com/learnsphere/learnsphere-backend/internal/http/response"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	learningsvc "github.com/learnsphere/learnsphere-backend/internal/services/learning"
	"github.com/learnsphere/learnsphere-backend/internal/services/progress"
)

type TrackerHandler struct {
	log        *logger.Logger
	learning   learningsvc.Service
	aggregator progress.Aggregator
	enqueue    jobs.Enqueuer
}

func NewTrackerHandler(log *logger.Logger, learning learningsvc.Service, aggregator progress.Aggregator, enqueue jobs.Enqueuer) *TrackerHandler {
	return &TrackerHandler{
		log:        log.With("handler", "TrackerHandler"),
		learning:   learning,
		aggregator: aggregator,
		enqueue:    enqueue,
	}
}

type startTrackerRequest struct {
	ArtifactKind    string     `json:"artifact_kind" binding:"required,artifact_kind"`
	ArtifactID      uuid.UUID  `json:"artifact_id" binding:"required"`
	ParentTrackerID *uuid.UUID `json:"parent_tracker_id"`
}

func (h *TrackerHandler) Start(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	var req startTrackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ref, ok := artifactRef(c, req.ArtifactKind, req.ArtifactID)
	if !ok {
		return
	}

	t, err := h.learning.Start(c.Request.Context(), db, learningsvc.StartInput{
		UserID:          rd.UserID,
		Ref:             ref,
		ParentTrackerID: req.ParentTrackerID,
	})
	if err != nil {
		h.log.Error("Start tracker failed", "error", err, "user_id", rd.UserID, "artifact", ref.String())
		response.RespondAppError(c, err)
		return
	}

	// A new ontology container has to absorb progress the learner already
	// earned on its members.
	if ref.Kind == types.KindSkillOntology {
		dbc := dbctx.Context{Ctx: c.Request.Context(), Tx: db}
		if err := h.enqueue.Enqueue(dbc, rd.Tenant, types.JobTypeOntologyRefresh, &rd.UserID,
			jobs.OntologyRefreshPayload{UserID: rd.UserID, OntologyID: ref.ID}); err != nil {
			h.log.Warn("ontology refresh enqueue failed", "error", err, "user_id", rd.UserID)
		}
	}
	response.RespondCreated(c, gin.H{"tracker": t})
}

func (h *TrackerHandler) Get(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.learning.Get(c.Request.Context(), db, rd.UserID, id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tracker": t})
}

// Children returns the parent's child artifacts with tracker and lock state,
// the payload a learner's curriculum view renders from.
func (h *TrackerHandler) Children(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.learning.Get(c.Request.Context(), db, rd.UserID, id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	children, err := h.learning.State(c.Request.Context(), db, rd.UserID, t)
	if err != nil {
		h.log.Error("Children failed", "error", err, "tracker", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tracker": t, "children": children})
}

type videoProgressRequest struct {
	CompletedDurationSecs int `json:"completed_duration_secs" binding:"min=0"`
}

func (h *TrackerHandler) VideoProgress(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req videoProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	// Ownership check before the cascade touches anything.
	if _, err := h.learning.Get(c.Request.Context(), db, rd.UserID, id); err != nil {
		response.RespondAppError(c, err)
		return
	}

	t, err := h.aggregator.UpdateVideoProgress(c.Request.Context(), rd.Tenant, db, id, req.CompletedDurationSecs)
	if err != nil {
		h.log.Error("VideoProgress failed", "error", err, "tracker", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tracker": t})
}

func (h *TrackerHandler) Complete(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.learning.Get(c.Request.Context(), db, rd.UserID, id); err != nil {
		response.RespondAppError(c, err)
		return
	}

	t, err := h.aggregator.CompleteLeaf(c.Request.Context(), rd.Tenant, db, id)
	if err != nil {
		h.log.Error("Complete failed", "error", err, "tracker", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tracker": t})
}

func (h *TrackerHandler) StartLab(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	lab, err := h.learning.StartLab(c.Request.Context(), db, rd.UserID, id)
	if err != nil {
		h.log.Error("StartLab failed", "error", err, "tracker", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lab": lab})
}

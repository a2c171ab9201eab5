package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnsphere/learnsphere-backend/internal/http/response"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	attemptsvc "github.com/learnsphere/learnsphere-backend/internal/services/attempt"
)

type AssessmentHandler struct {
	log      *logger.Logger
	attempts attemptsvc.Service
}

func NewAssessmentHandler(log *logger.Logger, attempts attemptsvc.Service) *AssessmentHandler {
	return &AssessmentHandler{
		log:      log.With("handler", "AssessmentHandler"),
		attempts: attempts,
	}
}

type startAssessmentRequest struct {
	AssessmentID    uuid.UUID  `json:"assessment_id" binding:"required"`
	LearningKind    string     `json:"learning_kind" binding:"required,artifact_kind"`
	LearningID      uuid.UUID  `json:"learning_id" binding:"required"`
	ParentTrackerID *uuid.UUID `json:"parent_tracker_id"`
	EnrollmentID    *uuid.UUID `json:"enrollment_id"`
}

// Start reserves a provider schedule and returns the invite link.
func (h *AssessmentHandler) Start(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	var req startAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ref, ok := artifactRef(c, req.LearningKind, req.LearningID)
	if !ok {
		return
	}

	res, err := h.attempts.Start(c.Request.Context(), rd.Tenant, db, attemptsvc.StartInput{
		UserID:          rd.UserID,
		AssessmentID:    req.AssessmentID,
		LearningRef:     ref,
		ParentTrackerID: req.ParentTrackerID,
		EnrollmentID:    req.EnrollmentID,
	})
	if err != nil {
		h.log.Error("Start assessment failed", "error", err,
			"user_id", rd.UserID, "assessment", req.AssessmentID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"tracker":       res.Tracker,
		"schedule_link": res.ScheduleLink,
	})
}

// PullResults fetches the provider's attempts for a schedule on demand, the
// fallback path when the webhook has not arrived.
func (h *AssessmentHandler) PullResults(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	t, attempts, err := h.attempts.PullResults(c.Request.Context(), rd.Tenant, db, id)
	if err != nil {
		h.log.Error("PullResults failed", "error", err, "tracker", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tracker": t, "attempts": attempts})
}

// GrantReattempt adds one attempt to an exhausted tracker. Admin only.
func (h *AssessmentHandler) GrantReattempt(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.attempts.GrantReattempt(c.Request.Context(), rd.Tenant, db, id)
	if err != nil {
		h.log.Error("GrantReattempt failed", "error", err, "tracker", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tracker": t})
}

// ResultsWebhook ingests provider-pushed attempt results. The route is
// unauthenticated apart from a shared key; each schedule entry carries its
// own tenant routing envelope. The provider is always acknowledged once
// ingestion has been attempted.
func (h *AssessmentHandler) ResultsWebhook(c *gin.Context) {
	if key := envutil.String("ASSESSMENT_WEBHOOK_KEY", ""); key != "" {
		if c.GetHeader("X-Api-Key") != key {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
	}
	var req attemptsvc.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	h.attempts.IngestWebhook(c.Request.Context(), req)
	response.RespondOK(c, gin.H{"received": true})
}

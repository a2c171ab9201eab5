package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnsphere/learnsphere-backend/internal/http/response"
	"github.com/learnsphere/learnsphere-backend/internal/jobs"
	"github.com/learnsphere/learnsphere-backend/internal/platform/blob"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	enrollmentsvc "github.com/learnsphere/learnsphere-backend/internal/services/enrollment"
)

type EnrollmentHandler struct {
	log         *logger.Logger
	enrollments enrollmentsvc.Service
	bucket      blob.BucketService
	enqueue     jobs.Enqueuer
}

func NewEnrollmentHandler(log *logger.Logger, enrollments enrollmentsvc.Service, bucket blob.BucketService, enqueue jobs.Enqueuer) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:         log.With("handler", "EnrollmentHandler"),
		enrollments: enrollments,
		bucket:      bucket,
		enqueue:     enqueue,
	}
}

type enrollRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	ArtifactKind string     `json:"artifact_kind" binding:"required,artifact_kind"`
	ArtifactID   uuid.UUID  `json:"artifact_id" binding:"required"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// Enroll admits the caller (or, for admins, any user) into an artifact.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ref, ok := artifactRef(c, req.ArtifactKind, req.ArtifactID)
	if !ok {
		return
	}
	userID := rd.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}

	e, err := h.enrollments.Enroll(c.Request.Context(), rd.Tenant, db, enrollmentsvc.EnrollInput{
		ActorID:      rd.UserID,
		ActorIsAdmin: rd.IsAdmin(),
		UserID:       userID,
		Ref:          ref,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	})
	if err != nil {
		h.log.Error("Enroll failed", "error", err, "user_id", userID, "artifact", ref.String())
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"enrollment": e})
}

type decideRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// Decide approves or rejects a pending enrollment. Admin only.
func (h *EnrollmentHandler) Decide(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	e, err := h.enrollments.Decide(c.Request.Context(), rd.Tenant, db, enrollmentsvc.DecideInput{
		EnrollmentID: id,
		ActorID:      rd.UserID,
		Approve:      req.Approve,
		Reason:       req.Reason,
	})
	if err != nil {
		h.log.Error("Decide failed", "error", err, "enrollment", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": e})
}

type unenrollRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	ArtifactKind string     `json:"artifact_kind" binding:"required,artifact_kind"`
	ArtifactID   uuid.UUID  `json:"artifact_id" binding:"required"`
}

func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	var req unenrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ref, ok := artifactRef(c, req.ArtifactKind, req.ArtifactID)
	if !ok {
		return
	}
	userID := rd.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}

	err := h.enrollments.Unenroll(c.Request.Context(), rd.Tenant, db, enrollmentsvc.UnenrollInput{
		ActorID:      rd.UserID,
		ActorIsAdmin: rd.IsAdmin(),
		UserID:       userID,
		Ref:          ref,
	})
	if err != nil {
		h.log.Error("Unenroll failed", "error", err, "user_id", userID, "artifact", ref.String())
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"unenrolled": true})
}

func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	rows, err := h.enrollments.ListForUser(c.Request.Context(), db, rd.UserID)
	if err != nil {
		h.log.Error("ListMine failed", "error", err, "user_id", rd.UserID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": rows})
}

// BulkUpload receives an enrollment or unenrollment sheet, parks it in the
// bucket, and defers the row-by-row work to the job queue. Admin only.
func (h *EnrollmentHandler) BulkUpload(jobType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd, db, ok := caller(c)
		if !ok {
			return
		}
		fh, err := c.FormFile("file")
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "missing_file", err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
			return
		}
		defer f.Close()

		key := fmt.Sprintf("%s/bulk/%s-%s", rd.Tenant, uuid.New().String(), fh.Filename)
		if err := h.bucket.UploadFile(c.Request.Context(), key, f); err != nil {
			h.log.Error("bulk sheet upload failed", "error", err, "key", key)
			response.RespondAppError(c, err)
			return
		}

		dbc := dbctx.Context{Ctx: c.Request.Context(), Tx: db}
		err = h.enqueue.Enqueue(dbc, rd.Tenant, jobType, &rd.UserID, jobs.BulkSheetPayload{
			ObjectKey: key,
			ActorID:   rd.UserID.String(),
		})
		if err != nil {
			h.log.Error("bulk job enqueue failed", "error", err, "key", key)
			response.RespondAppError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"object_key": key, "job_type": jobType})
	}
}

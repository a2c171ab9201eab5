package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/learnsphere-backend/internal/http/response"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	submissionsvc "github.com/learnsphere/learnsphere-backend/internal/services/submission"
)

type SubmissionHandler struct {
	log         *logger.Logger
	submissions submissionsvc.Service
}

func NewSubmissionHandler(log *logger.Logger, submissions submissionsvc.Service) *SubmissionHandler {
	return &SubmissionHandler{
		log:         log.With("handler", "SubmissionHandler"),
		submissions: submissions,
	}
}

// Submit accepts a multipart upload for a tracker: a description field plus
// one or more files.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	trackerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	in := submissionsvc.SubmitInput{
		UserID:      rd.UserID,
		TrackerID:   trackerID,
		Description: c.PostForm("description"),
	}
	opened := make([]multipart.File, 0, len(form.File["files"]))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
			return
		}
		opened = append(opened, f)
		in.Files = append(in.Files, submissionsvc.FileInput{
			Name:      fh.Filename,
			SizeBytes: fh.Size,
			Reader:    f,
		})
	}

	sub, err := h.submissions.Submit(c.Request.Context(), rd.Tenant, db, in)
	if err != nil {
		h.log.Error("Submit failed", "error", err, "tracker", trackerID, "user_id", rd.UserID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"submission": sub})
}

// List returns the caller's submission attempts for a tracker.
func (h *SubmissionHandler) List(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	trackerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	subs, err := h.submissions.ListByTracker(c.Request.Context(), db, rd.UserID, trackerID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submissions": subs})
}

type reviewRequest struct {
	Feedback string  `json:"feedback"`
	Progress float64 `json:"progress" binding:"min=0,max=100"`
}

// Review scores a pending submission. Admin only.
func (h *SubmissionHandler) Review(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	sub, err := h.submissions.Review(c.Request.Context(), rd.Tenant, db, submissionsvc.ReviewInput{
		SubmissionID: id,
		ReviewerID:   rd.UserID,
		Feedback:     req.Feedback,
		Progress:     req.Progress,
	})
	if err != nil {
		h.log.Error("Review failed", "error", err, "submission", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": sub})
}

// FileURL signs a short-lived download link for one stored file.
func (h *SubmissionHandler) FileURL(c *gin.Context) {
	_, db, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	key := c.Query("key")
	if key == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_key", nil)
		return
	}
	url, err := h.submissions.FileURL(c.Request.Context(), db, id, key)
	if err != nil {
		h.log.Error("FileURL failed", "error", err, "submission", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"url": url})
}

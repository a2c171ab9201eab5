// Package response holds the JSON envelope helpers shared by every handler.
// Engine errors carry a Kind; the mapping here is the only place kinds turn
// into HTTP status codes.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError translates an engine error into its HTTP shape. Errors
// without a kind are treated as internal.
func RespondAppError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondError(c, status, string(kind), err)
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindNotAdmitted:         http.StatusForbidden,
	apperr.KindLocked:              http.StatusForbidden,
	apperr.KindAlreadyStarted:      http.StatusConflict,
	apperr.KindConflictingState:    http.StatusConflict,
	apperr.KindAttemptsExhausted:   http.StatusConflict,
	apperr.KindConfigMissing:       http.StatusUnprocessableEntity,
	apperr.KindProviderUnavailable: http.StatusBadGateway,
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrUnauthorizedActor),
		errors.Is(err, domainwf.ErrInvalidAssignee):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrStaleStep),
		errors.Is(err, domainwf.ErrDefinitionInUse),
		errors.Is(err, domainwf.ErrDefinitionInactive),
		errors.Is(err, domainwf.ErrInstanceNotActive),
		errors.Is(err, domainwf.ErrAlreadyDecided),
		errors.Is(err, domainwf.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrNoApplicableStep),
		errors.Is(err, domainwf.ErrAutoAdvanceCycle):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors are logged and
// reported without detail.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}

	var verr *domainwf.ValidationError
	if errors.As(err, &verr) {
		resp.Details = verr.Problems
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/logger"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// statusClientClosedRequest reports a request abandoned by its caller.
const statusClientClosedRequest = 499

var kindStatus = map[apperr.Kind]int{
	apperr.Validation:   http.StatusBadRequest,
	apperr.NotFound:     http.StatusNotFound,
	apperr.Permission:   http.StatusForbidden,
	apperr.Conflict:     http.StatusConflict,
	apperr.Dependency:   http.StatusServiceUnavailable,
	apperr.Unauthorized: http.StatusUnauthorized,
	apperr.Canceled:     statusClientClosedRequest,
	apperr.Internal:     http.StatusInternalServerError,
}

// statusFor maps an error's kind to an HTTP status.
func statusFor(err error) int {
	if s, ok := kindStatus[apperr.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func envelope(err error) errorEnvelope {
	return errorEnvelope{Error: apiError{
		Code:    string(apperr.KindOf(err)),
		Message: apperr.Message(err),
	}}
}

// respondError writes the error envelope. Internal details are logged,
// never returned.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Error("request failed", "path", c.FullPath(), "error", err, "request_id", c.GetString(requestIDKey))
	}
	c.JSON(status, envelope(err))
}

func abortError(c *gin.Context, log *logger.Logger, err error) {
	respondError(c, log, err)
	c.Abort()
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

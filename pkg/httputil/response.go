package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scheduling-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status   string      `json:"status"`
	Code     string      `json:"code,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Warnings interface{} `json:"warnings,omitempty"`
	TraceID  string      `json:"trace_id,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithWarnings sends a success response that carries soft failures.
// The warnings key is left out when there are none.
func RespondWithWarnings[W any](c *gin.Context, status int, data interface{}, warnings []W) {
	resp := Response{
		Status: "success",
		Data:   data,
	}
	if len(warnings) > 0 {
		resp.Warnings = warnings
	}
	c.JSON(status, resp)
}

// RespondWithError sends an error response. Errors that are not an
// AppError are reported as internal without leaking their message.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}

	message := appErr.Message
	if appErr.Kind == errors.KindInternal {
		message = "internal server error"
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), Response{
		Status:  "error",
		Code:    string(appErr.Code),
		Message: message,
		TraceID: c.GetString("request_id"),
	})
}

// StatusFor is exposed for middleware that renders errors itself.
func StatusFor(err error) int {
	if appErr, ok := errors.As(err); ok {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

// envelope is the body of every response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(kind, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(kind, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, common.ErrDependency):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// statusFor maps err to an HTTP status. Classified errors are mapped by their
// own kind, never by the kind of a wrapped cause.
func statusFor(err error) int {
	var e *common.Error
	if errors.As(err, &e) {
		return statusForKind(e.Kind)
	}
	return statusForKind(err)
}

// respondError writes the error envelope. Failures mapped to 5xx are logged
// with their cause since the client only sees a generic message.
func (s *HTTPServer) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := common.Message(err, http.StatusText(status))
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"error", err,
		)
		msg = "internal server error"
	}
	respond(c, status, nil, msg)
	c.Abort()
}

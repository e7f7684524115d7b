package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultguard/vaultguard/internal/errors"
)

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var (
		validation    *errors.ErrValidation
		invalidConfig *errors.ErrInvalidConfiguration
		weakPassword  *errors.ErrWeakPassword
		notFound      *errors.ErrNotFound
		invalidCreds  *errors.ErrInvalidCredentials
		notVerified   *errors.ErrEmailNotVerified
		exists        *errors.ErrAccountAlreadyExists
		rateLimited   *errors.ErrRateLimited
		unavailable   *errors.ErrRemoteUnavailable
	)

	switch {
	case stderrors.As(err, &validation), stderrors.As(err, &invalidConfig), stderrors.As(err, &weakPassword):
		return http.StatusBadRequest
	case stderrors.As(err, &invalidCreds):
		return http.StatusUnauthorized
	case stderrors.As(err, &notVerified):
		return http.StatusForbidden
	case stderrors.As(err, &notFound):
		return http.StatusNotFound
	case stderrors.As(err, &exists):
		return http.StatusConflict
	case stderrors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case stderrors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError terminates the request with the error's mapped status. Internal
// errors are not echoed to the client.
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusForError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorWithContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err.Error(),
		)
		message = "internal error"
	}

	s.metrics.RecordError(errorType(status), c.FullPath(), c.Request.Method)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func errorType(status int) string {
	switch {
	case status >= 500:
		return "server"
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth"
	default:
		return "client"
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estately/internal/apperr"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrRateLimited   = errors.New("rate_limited")
	ErrInvalidID     = errors.New("invalid_id")
	ErrMissingTenant = errors.New("missing_tenant")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	}

	kind := apperr.KindOf(err)
	payload := errorPayload{Type: string(kind), Message: "internal server error"}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && kind != apperr.KindInternal {
		payload.Message = appErr.Message
		if kind == apperr.KindValidation {
			payload.Errors = []ValidationError{{
				Field:   appErr.Field,
				Code:    validationCode(appErr),
				Message: appErr.Message,
			}}
		}
	}
	if kind == apperr.KindConnection {
		payload.Message = "service unavailable"
	}
	return statusForKind(kind), payload
}

func validationCode(err *apperr.Error) string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return "invalid_value"
}

// statusForKind is the HTTP status a tool result or request error of kind maps to.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classifyErrorForLog feeds the request logger a stable error kind.
func classifyErrorForLog(err error) string {
	if errors.Is(err, ErrRateLimited) {
		return "rate_limited"
	}
	return string(apperr.KindOf(err))
}

package middleware

import (
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/pkg/logger"
	"github.com/cetra-finance/chamber/internal/service"
	"github.com/gin-gonic/gin"
)

// Seconds a client should wait before resubmitting.
var retryAfter = map[apperrors.ErrorType]string{
	apperrors.ErrChamberBusy:    "1",
	apperrors.ErrOutcomeUnknown: "5",
}

// ErrorHandler renders the last error attached with c.Error as an AppError body,
// tagged with whether the request is worth resubmitting.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		body := errorBody(c.Errors.Last().Err)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error_type", body.Type,
			"retry", body.Retry,
			"client_ip", c.ClientIP(),
		}
		if body.Code != 0 {
			logFields = append(logFields, "program_code", body.Code)
		}

		if body.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), body, "request failed", logFields...)
		} else {
			logger.Warn(body.Message, logFields...)
		}

		if after, ok := retryAfter[body.Type]; ok {
			c.Header("Retry-After", after)
		}
		c.JSON(body.HTTPStatus, body)
	}
}

// errorBody is the rendered form of err, tagged with its retry class.
func errorBody(err error) *apperrors.AppError {
	body := *apperrors.Wrap(err)
	body.Retry = service.Classify(&body).String()
	return &body
}

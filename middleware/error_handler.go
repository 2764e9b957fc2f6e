package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"` // For HTTP status code as string
	// Reason is the machine-readable AppError code, e.g. submission_in_progress.
	Reason string `json:"reason,omitempty"`
}

// ErrorHandler renders the last error attached to the gin context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		err := last.Err

		if appError, ok := errors.As(err); ok {
			statusCode := appError.GetHTTPStatus()
			logger.LogHTTPError(c, err, statusCode, fmt.Sprintf("%s error", appError.Type))

			response := ErrorResponse{
				Type:    string(appError.Type),
				Message: appError.Message,
				Code:    strconv.Itoa(statusCode),
				Reason:  appError.Code,
			}

			// Details are safe to show for client-side mistakes; the rest only in debug mode
			if appError.Detail != "" && (gin.IsDebugging() || statusCode < http.StatusInternalServerError) {
				response.Details = appError.Detail
			}

			if appError.Type == errors.RateLimitError {
				if retry := c.Writer.Header().Get("Retry-After"); retry == "" {
					c.Header("Retry-After", "60")
				}
			}

			c.JSON(statusCode, response)
			return
		}

		// Gin binding errors
		if last.Type == gin.ErrorTypeBind {
			logger.LogHTTPError(c, err, http.StatusBadRequest, "Request binding error")

			response := ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: "Failed to bind request",
				Code:    "400",
			}
			if gin.IsDebugging() {
				response.Details = err.Error()
			}

			c.JSON(http.StatusBadRequest, response)
			return
		}

		// Gin public errors carry a message meant for the client
		if last.Type == gin.ErrorTypePublic {
			logger.LogHTTPError(c, err, http.StatusBadRequest, "Public error")

			c.JSON(http.StatusBadRequest, ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: err.Error(),
				Code:    "400",
			})
			return
		}

		logger.LogHTTPError(c, err, http.StatusInternalServerError, "Unexpected server error")

		response := ErrorResponse{
			Type:    string(errors.ServerError),
			Message: "Internal Server Error",
			Code:    "500",
		}
		if gin.IsDebugging() {
			response.Details = err.Error()
		}

		c.JSON(http.StatusInternalServerError, response)
	}
}

package logger

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LogError logs an error together with whatever request context is available.
// Stack traces are attached outside production.
func LogError(ctx context.Context, err error, message string, metadata map[string]interface{}) {
	fields := []zap.Field{zap.Error(err)}

	if ginCtx, ok := ctx.(*gin.Context); ok {
		if requestID := ginCtx.GetString("request_id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}
		if sessionID := ginCtx.Param("id"); sessionID != "" {
			fields = append(fields, zap.String("session_id", sessionID))
		}
		fields = append(fields,
			zap.String("path", ginCtx.Request.URL.Path),
			zap.String("method", ginCtx.Request.Method),
			zap.String("ip_address", ginCtx.ClientIP()),
		)
		if status := ginCtx.Writer.Status(); status != 0 {
			fields = append(fields, zap.Int("status_code", status))
		}
	}

	if !isProduction() {
		fields = append(fields, zap.String("stack_trace", getStackTrace(3)))
	}

	for k, v := range metadata {
		fields = append(fields, zap.Any(k, v))
	}

	GetLogger().Desugar().Error(message, fields...)
}

// LogHTTPError logs an HTTP request error with context from a gin.Context
func LogHTTPError(c *gin.Context, err error, statusCode int, message string) {
	metadata := map[string]interface{}{
		"status_code": statusCode,
		"headers":     filterSensitiveHeaders(c.Request.Header),
	}

	if subject, ok := c.Get("auth_subject"); ok {
		metadata["auth_subject"] = subject
	}

	LogError(c, err, message, metadata)
}

// getStackTrace captures a stack trace starting from the specified skip level
func getStackTrace(skip int) string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "runtime.") {
			builder.WriteString(frame.Function)
			builder.WriteString("\n\t")
			builder.WriteString(frame.File)
			builder.WriteString(":")
			builder.WriteString(strconv.Itoa(frame.Line))
			builder.WriteString("\n")
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// filterSensitiveHeaders redacts credentials before headers reach the log.
func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string)

	for name, values := range headers {
		lower := strings.ToLower(name)
		if lower == "authorization" ||
			lower == "cookie" ||
			strings.Contains(lower, "token") ||
			strings.Contains(lower, "key") ||
			strings.Contains(lower, "secret") ||
			strings.Contains(lower, "passphrase") {
			filtered[name] = "[REDACTED]"
			continue
		}

		if len(values) > 0 {
			filtered[name] = values[0]
		}
	}

	return filtered
}

package middleware

import (
	"strings"

	"github.com/NomadCrew/feedback-attestation/config"
	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets response headers for a JSON-only API. Nothing served here
// is meant to be framed, sniffed or rendered as a document.
func SecurityHeaders(cfg *config.ServerConfig) gin.HandlerFunc {
	production := cfg.Environment == config.EnvProduction
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Form sessions and submission results are per-user state.
		if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
			h.Set("Cache-Control", "no-store")
		}

		if production {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

package middleware

import (
	"errors"
	"strings"

	apperrors "github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// BearerAuth requires an HS256-signed bearer token with a subject. The
// subject is stored under AuthSubjectKey.
func BearerAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			_ = c.Error(apperrors.Unauthorized("missing_token", "Authorization token required"))
			c.Abort()
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		var claims jwt.RegisteredClaims
		_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil {
			logger.GetLogger().Debugw("Bearer token rejected",
				"error", err,
				"token", logger.MaskJWT(tokenString),
			)
			if errors.Is(err, jwt.ErrTokenExpired) {
				_ = c.Error(apperrors.Unauthorized("token_expired", "Your session has expired"))
			} else {
				_ = c.Error(apperrors.Unauthorized("invalid_token", "Invalid authorization token"))
			}
			c.Abort()
			return
		}

		if claims.Subject == "" {
			_ = c.Error(apperrors.Unauthorized("invalid_claims", "Token has no subject"))
			c.Abort()
			return
		}

		c.Set(AuthSubjectKey, claims.Subject)
		c.Next()
	}
}

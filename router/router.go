package router

import (
	"github.com/NomadCrew/feedback-attestation/config"
	"github.com/NomadCrew/feedback-attestation/handlers"
	"github.com/NomadCrew/feedback-attestation/middleware"
	"github.com/NomadCrew/feedback-attestation/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config          *config.Config
	FeedbackHandler *handlers.FeedbackHandler
	HealthHandler   *handlers.HealthHandler
	// RateLimiter is nil when Redis is not configured; submissions are then unlimited.
	RateLimiter services.RateLimiterInterface
	Logger      *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil && deps.Logger != nil {
		deps.Logger.Warnw("Invalid trusted proxy list, forwarded headers ignored", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	// Global Middleware
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.SecurityHeaders(&deps.Config.Server))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Health and Metrics Routes
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/attestations/:uid", deps.FeedbackHandler.GetAttestationHandler)

		feedbackRoutes := v1.Group("/feedback")
		if deps.Config.Server.JwtSecretKey != "" {
			feedbackRoutes.Use(middleware.BearerAuth(deps.Config.Server.JwtSecretKey))
		}
		{
			feedbackRoutes.GET("/schemas", deps.FeedbackHandler.ListSchemasHandler)

			var limiter gin.HandlerFunc
			if deps.RateLimiter != nil {
				limiter = middleware.SubmitRateLimiter(
					deps.RateLimiter,
					deps.Config.RateLimit.SubmitRequestsPerMinute,
					deps.Config.RateLimit.Window(),
				)
			}
			submit := func(h gin.HandlerFunc) []gin.HandlerFunc {
				if limiter == nil {
					return []gin.HandlerFunc{h}
				}
				return []gin.HandlerFunc{limiter, h}
			}

			formRoutes := feedbackRoutes.Group("/forms")
			{
				formRoutes.POST("", deps.FeedbackHandler.CreateFormHandler)
				formRoutes.GET("/:id", deps.FeedbackHandler.GetFormHandler)
				formRoutes.PUT("/:id/category", deps.FeedbackHandler.SelectCategoryHandler)
				formRoutes.PATCH("/:id/fields", deps.FeedbackHandler.UpdateFieldHandler)
				formRoutes.POST("/:id/submit", submit(deps.FeedbackHandler.SubmitFormHandler)...)
				formRoutes.DELETE("/:id", deps.FeedbackHandler.DiscardFormHandler)
			}

			feedbackRoutes.POST("/attestations", submit(deps.FeedbackHandler.AttestHandler)...)
		}
	}

	return r
}

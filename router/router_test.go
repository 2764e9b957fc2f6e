package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NomadCrew/feedback-attestation/config"
	"github.com/NomadCrew/feedback-attestation/handlers"
	"github.com/NomadCrew/feedback-attestation/internal/store"
	"github.com/NomadCrew/feedback-attestation/models"
	"github.com/NomadCrew/feedback-attestation/services"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct{}

func (stubSubmitter) Submit(context.Context, types.EncodedPayload) types.SubmissionResult {
	return types.SubmissionResult{
		Outcome:       types.SubmissionSucceeded,
		AttestationID: common.HexToHash("0x01").Hex(),
	}
}

type stubReader struct{}

func (stubReader) GetAttestation(context.Context, string) (*types.AttestationRecord, error) {
	return &types.AttestationRecord{}, nil
}

type stubHealth struct{}

func (stubHealth) CheckHealth(context.Context) types.HealthCheck {
	return types.HealthCheck{Status: types.HealthStatusUp}
}

type denyAllLimiter struct{ calls int }

func (l *denyAllLimiter) CheckLimit(context.Context, string, int, time.Duration) (bool, time.Duration, error) {
	l.calls++
	return false, 30 * time.Second, nil
}

func testDeps(cfg *config.Config, limiter services.RateLimiterInterface) Dependencies {
	svc := services.NewFeedbackService(
		store.NewMemoryFormStore(time.Hour),
		stubSubmitter{},
		stubReader{},
		models.EncodeOptions{
			FeedbackSchemaUID:  common.HexToHash(config.DefaultFeedbackSchemaUID),
			NotUsefulSchemaUID: common.HexToHash(config.DefaultNotUsefulSchemaUID),
		},
	)
	return Dependencies{
		Config:          cfg,
		FeedbackHandler: handlers.NewFeedbackHandler(svc),
		HealthHandler:   handlers.NewHealthHandler(stubHealth{}),
		RateLimiter:     limiter,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: config.EnvDevelopment},
		RateLimit: config.RateLimitConfig{
			SubmitRequestsPerMinute: 10,
			WindowSeconds:           60,
		},
	}
}

func serve(r *gin.Engine, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(testDeps(testConfig(), nil))

	w := serve(r, http.MethodGet, "/health/liveness", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/v1/feedback/schemas", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.FeedbackSchema)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = serve(r, http.MethodPost, "/v1/feedback/attestations",
		`{"category":"positive","id":"1","buttonName":"Submit"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Attestation created successfully")
}

func TestSetupRouter_SubmitRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &denyAllLimiter{}
	r := SetupRouter(testDeps(testConfig(), limiter))

	w := serve(r, http.MethodPost, "/v1/feedback/attestations",
		`{"category":"positive","id":"1","buttonName":"Submit"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	// Non-submit routes are not limited.
	w = serve(r, http.MethodPost, "/v1/feedback/forms", `{"category":"negative"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, limiter.calls)
}

func TestSetupRouter_BearerAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Server.JwtSecretKey = "0123456789abcdef0123456789abcdef"
	r := SetupRouter(testDeps(cfg, nil))

	w := serve(r, http.MethodGet, "/v1/feedback/schemas", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(cfg.Server.JwtSecretKey))
	require.NoError(t, err)

	w = serve(r, http.MethodGet, "/v1/feedback/schemas", "", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays public.
	w = serve(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

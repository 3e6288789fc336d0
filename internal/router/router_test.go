package router_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/handler"
	"ipanalyzer/internal/metrics"
	"ipanalyzer/internal/middleware"
	"ipanalyzer/internal/report/reporttest"
	"ipanalyzer/internal/router"
	"ipanalyzer/internal/source"
	"ipanalyzer/mocks"
)

const secret = "router-test-secret-0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T, analysis *mocks.MockAnalysisService, authCfg config.AuthConfig) (*gin.Engine, *metrics.Handler) {
	t.Helper()
	m := metrics.New()
	h := handler.NewAnalysisHandler(analysis, new(mocks.MockDeliveryService), source.NewReader(0, zerolog.Nop()), 0, nil, zerolog.Nop())
	r := router.Setup(zerolog.Nop(), m, middleware.NewTokenValidator(authCfg), []string{"http://localhost:3000"},
		h, handler.NewHealthHandler())
	return r, m
}

func do(r http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r, m := setup(t, new(mocks.MockAnalysisService), config.AuthConfig{JWTSecret: secret})
	m.IncRunsTotal("success")

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", "", nil).Code)

	w := do(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ipanalyzer_runs_total")
}

func TestRouter_APIRequiresToken(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	r, _ := setup(t, analysis, config.AuthConfig{JWTSecret: secret})

	w := do(r, http.MethodPost, "/api/v1/analyses", "", []byte(`{"text":"8.8.8.8"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	analysis.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestRouter_AnalysisWithToken(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	analysis.On("Analyze", mock.Anything, mock.Anything).Return(reporttest.Sample(), nil).Once()
	r, _ := setup(t, analysis, config.AuthConfig{JWTSecret: secret})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "analyst-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte(secret))
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/v1/analyses", token, []byte(`{"text":"8.8.8.8"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	analysis.AssertExpectations(t)
}

func TestRouter_AuthDisabled(t *testing.T) {
	r, _ := setup(t, new(mocks.MockAnalysisService), config.AuthConfig{})

	w := do(r, http.MethodGet, "/api/v1/formats", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "xlsx")
}

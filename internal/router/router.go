package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/handler"
	"ipanalyzer/internal/metrics"
	"ipanalyzer/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	log zerolog.Logger,
	m *metrics.Handler,
	tokens *middleware.TokenValidator,
	allowedOrigins []string,
	analysisH *handler.AnalysisHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks and metrics
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", gin.WrapH(m.HTTPHandler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(tokens))

	v1.GET("/formats", analysisH.Formats)
	v1.POST("/analyses", analysisH.Create)

	return r
}

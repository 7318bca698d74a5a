package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taleval/taleval/internal/api/benchmark"
	"github.com/taleval/taleval/internal/api/evaluation"
	"github.com/taleval/taleval/internal/service"
)

// SetupRouter configures all routes
func SetupRouter(r *gin.Engine, benchmarks *benchmark.Handler, evaluations *evaluation.Handler) {
	// CORS middleware
	r.Use(CORSMiddleware())

	// Health check
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "TaleEval API is running",
			"version": "1.0.0",
		})
	})

	api := r.Group("/api")
	{
		// Benchmark execution; starts fan out into judge calls, so keep
		// them behind a per-IP rate limit
		startLimit := StartRateLimitMiddleware(service.NewStartRateLimit(time.Minute, 10))
		benchmarkGroup := api.Group("/benchmarks")
		{
			benchmarkGroup.POST("/:benchmark_id/start", startLimit, benchmarks.Start)
			benchmarkGroup.POST("/:benchmark_id/start-missing", startLimit, benchmarks.StartMissing)
			benchmarkGroup.GET("/:benchmark_id/status", benchmarks.Status)
		}

		// Evaluation analytics
		evaluationGroup := api.Group("/evaluation")
		{
			evaluationGroup.GET("/analytics", evaluations.Analytics)
			evaluationGroup.GET("/model-analysis", evaluations.ModelAnalysis)
			evaluationGroup.GET("/metric-analysis", evaluations.MetricAnalysis)
			evaluationGroup.GET("/test-case-analysis", evaluations.TestCaseAnalysis)
			evaluationGroup.GET("/benchmark-analysis/:benchmark_id", evaluations.BenchmarkAnalysis)
		}
	}
}

// StartRateLimitMiddleware rejects benchmark starts beyond the limit
func StartRateLimitMiddleware(limit *service.StartRateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limit.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "Too many benchmark starts, try again later",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware provides CORS support
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

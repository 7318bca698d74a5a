package evaluation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taleval/taleval/internal/model"
	"github.com/taleval/taleval/internal/service"
)

// Handler serves evaluation analytics endpoints
type Handler struct {
	analytics *service.Analytics
}

// NewHandler creates the evaluation handler
func NewHandler(analytics *service.Analytics) *Handler {
	return &Handler{analytics: analytics}
}

func paramsFrom(c *gin.Context) service.AnalyticsParams {
	return service.AnalyticsParams{
		PromptIDs:    c.Query("promptIds"),
		MetricIDs:    c.Query("metricIds"),
		ModelIDs:     c.Query("modelIds"),
		TestCaseIDs:  c.Query("testCaseIds"),
		BenchmarkIDs: c.Query("benchmarkIds"),
		Group:        c.Query("group"),
		Strategy:     c.Query("deduplication"),
		Page:         c.Query("page"),
		PageSize:     c.Query("pageSize"),
	}
}

func reject(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, service.ErrInvalidIDFilter),
		errors.Is(err, service.ErrUnknownGroup),
		errors.Is(err, service.ErrUnknownStrategy),
		errors.Is(err, service.ErrInvalidPagination):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
	return true
}

// Analytics answers the unified grouped analytics query with pagination
func (h *Handler) Analytics(c *gin.Context) {
	q, err := service.ParseAnalyticsParams(paramsFrom(c))
	if reject(c, err) {
		return
	}

	page, err := h.analytics.Query(c.Request.Context(), q)
	if reject(c, err) {
		return
	}

	c.JSON(http.StatusOK, page)
}

// filterAndStrategy parses the shared filter parameters of the fixed
// analysis endpoints. Scoping to benchmarks disables deduplication.
func filterAndStrategy(c *gin.Context) (model.ResultFilter, service.Strategy, error) {
	var filter model.ResultFilter
	var err error

	if filter.PromptIDs, err = service.ParseIDList(c.Query("promptIds")); err != nil {
		return filter, "", err
	}
	if filter.MetricIDs, err = service.ParseIDList(c.Query("metricIds")); err != nil {
		return filter, "", err
	}
	if filter.ModelIDs, err = service.ParseIDList(c.Query("modelIds")); err != nil {
		return filter, "", err
	}
	if filter.TestCaseIDs, err = service.ParseIDList(c.Query("testCaseIds")); err != nil {
		return filter, "", err
	}
	if filter.BenchmarkIDs, err = service.ParseIDList(c.Query("benchmarkIds")); err != nil {
		return filter, "", err
	}

	strategy, err := service.ParseStrategy(c.Query("deduplication"))
	if err != nil {
		return filter, "", err
	}
	if len(filter.BenchmarkIDs) > 0 {
		strategy = service.StrategyAll
	}
	return filter, strategy, nil
}

// ModelAnalysis compares metrics for one or more models
func (h *Handler) ModelAnalysis(c *gin.Context) {
	filter, strategy, err := filterAndStrategy(c)
	if reject(c, err) {
		return
	}

	analysis, err := h.analytics.Analyze(c.Request.Context(), filter, service.GroupMetric, strategy)
	if reject(c, err) {
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// MetricAnalysis compares models for one or more metrics
func (h *Handler) MetricAnalysis(c *gin.Context) {
	filter, strategy, err := filterAndStrategy(c)
	if reject(c, err) {
		return
	}

	analysis, err := h.analytics.Analyze(c.Request.Context(), filter, service.GroupModel, strategy)
	if reject(c, err) {
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// TestCaseAnalysis breaks a test case down into model x metric combinations
func (h *Handler) TestCaseAnalysis(c *gin.Context) {
	filter, strategy, err := filterAndStrategy(c)
	if reject(c, err) {
		return
	}

	analysis, err := h.analytics.Analyze(c.Request.Context(), filter, service.GroupTestCase, strategy)
	if reject(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"overall":      analysis.Overall,
		"combinations": analysis.ModelMetrics,
		"groups":       analysis.Groups,
	})
}

// BenchmarkAnalysis summarizes one benchmark's results along both the
// model and the metric axis. Results stay scoped to the benchmark, so no
// deduplication applies.
func (h *Handler) BenchmarkAnalysis(c *gin.Context) {
	ids, err := service.ParseIDList(c.Param("benchmark_id"))
	if err != nil || len(ids) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid benchmark id"})
		return
	}
	filter := model.ResultFilter{BenchmarkIDs: ids}

	byModel, err := h.analytics.Analyze(c.Request.Context(), filter, service.GroupModel, service.StrategyAll)
	if reject(c, err) {
		return
	}
	byMetric, err := h.analytics.Analyze(c.Request.Context(), filter, service.GroupMetric, service.StrategyAll)
	if reject(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"benchmark_id": ids[0],
		"overall":      byModel.Overall,
		"models":       byModel.Groups,
		"metrics":      byMetric.Groups,
	})
}

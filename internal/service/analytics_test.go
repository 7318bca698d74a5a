package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleval/taleval/internal/model"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		raw  string
		want []int64
	}{
		{"", nil},
		{"7", []int64{7}},
		{"1,2,3", []int64{1, 2, 3}},
		{"1-2-3", []int64{1, 2, 3}},
		{"4,5-6", []int64{4, 5, 6}},
	}
	for _, tt := range tests {
		got, err := ParseIDList(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	for _, raw := range []string{"a", "1,x", "0", "-3", "1,,2,-"} {
		_, err := ParseIDList(raw)
		assert.ErrorIs(t, err, ErrInvalidIDFilter, raw)
	}
}

func TestParseAnalyticsParamsDefaults(t *testing.T) {
	q, err := ParseAnalyticsParams(AnalyticsParams{})
	require.NoError(t, err)
	assert.Equal(t, GroupModel, q.Group)
	assert.Equal(t, StrategyLatest, q.Strategy)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.PageSize)
}

func TestParseAnalyticsParamsBenchmarkScopeDisablesDedupe(t *testing.T) {
	q, err := ParseAnalyticsParams(AnalyticsParams{
		BenchmarkIDs: "3",
		Strategy:     "latest",
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyAll, q.Strategy)
	assert.Equal(t, []int64{3}, q.Filter.BenchmarkIDs)
}

func TestParseAnalyticsParamsValidation(t *testing.T) {
	_, err := ParseAnalyticsParams(AnalyticsParams{Page: "0"})
	assert.ErrorIs(t, err, ErrInvalidPagination)

	_, err = ParseAnalyticsParams(AnalyticsParams{PageSize: "-1"})
	assert.ErrorIs(t, err, ErrInvalidPagination)

	_, err = ParseAnalyticsParams(AnalyticsParams{Group: "user"})
	assert.ErrorIs(t, err, ErrUnknownGroup)

	_, err = ParseAnalyticsParams(AnalyticsParams{Strategy: "newest"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = ParseAnalyticsParams(AnalyticsParams{ModelIDs: "a,b"})
	assert.ErrorIs(t, err, ErrInvalidIDFilter)
}

func TestParseAnalyticsParamsPageSizeCap(t *testing.T) {
	q, err := ParseAnalyticsParams(AnalyticsParams{PageSize: "500"})
	require.NoError(t, err)
	assert.Equal(t, 100, q.PageSize)
}

func seedResults(t *testing.T, results *fakeResultStore) {
	t.Helper()
	ctx := context.Background()
	seed := []*model.Result{
		{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1, Score: 0.4, ModelName: "model-a", MetricName: "correctness", TestCaseID: 10},
		{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 2, Score: 0.8, ModelName: "model-a", MetricName: "correctness", TestCaseID: 10},
		{PromptID: 102, MetricID: 201, ModelID: 302, BenchmarkID: 1, Score: 0.6, ModelName: "model-b", MetricName: "correctness", TestCaseID: 10},
	}
	for _, r := range seed {
		require.NoError(t, results.Upsert(ctx, r))
	}
}

func TestQueryDeduplicatesBeforeAggregating(t *testing.T) {
	results := newFakeResultStore()
	seedResults(t, results)
	a := NewAnalytics(results)

	page, err := a.Query(context.Background(), AnalyticsQuery{
		Group:    GroupModel,
		Strategy: StrategyLatest,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)

	// the older duplicate of (101, 201, 301) is dropped
	assert.Equal(t, 2, page.Overall.TotalTests)
	assert.Equal(t, 0.7, page.Overall.AverageScore)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Pagination.TotalItems)
	assert.Equal(t, "latest", page.Strategy)
	assert.Equal(t, "model", page.Group)

	for _, g := range page.Data {
		switch g.Name {
		case "model-a":
			assert.Equal(t, 0.8, g.Average)
		case "model-b":
			assert.Equal(t, 0.6, g.Average)
		default:
			t.Fatalf("unexpected group %q", g.Name)
		}
	}
}

func TestQueryFiltersByBenchmark(t *testing.T) {
	results := newFakeResultStore()
	seedResults(t, results)
	a := NewAnalytics(results)

	page, err := a.Query(context.Background(), AnalyticsQuery{
		Filter:   model.ResultFilter{BenchmarkIDs: []int64{1}},
		Group:    GroupModel,
		Strategy: StrategyAll,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Overall.TotalTests)
	assert.Equal(t, 0.5, page.Overall.AverageScore)
}

func TestQueryPagination(t *testing.T) {
	results := newFakeResultStore()
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, results.Upsert(ctx, &model.Result{
			PromptID: 100 + i, MetricID: 201, ModelID: 300 + i, BenchmarkID: 1,
			Score: 0.5, ModelName: "m", TestCaseID: 10,
		}))
	}
	a := NewAnalytics(results)

	page, err := a.Query(ctx, AnalyticsQuery{
		Group:    GroupPrompt,
		Strategy: StrategyAll,
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 5, page.Pagination.TotalItems)
	assert.Equal(t, 2, page.Pagination.Page)

	// past the end yields an empty page, not an error
	page, err = a.Query(ctx, AnalyticsQuery{
		Group:    GroupPrompt,
		Strategy: StrategyAll,
		Page:     9,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 5, page.Pagination.TotalItems)
}

func TestAnalyzeGroupsWithoutPagination(t *testing.T) {
	results := newFakeResultStore()
	seedResults(t, results)
	a := NewAnalytics(results)

	analysis, err := a.Analyze(context.Background(), model.ResultFilter{}, GroupMetric, StrategyAverage)
	require.NoError(t, err)
	require.Len(t, analysis.Groups, 1)
	assert.Equal(t, "correctness", analysis.Groups[0].Name)
	// (avg(0.4, 0.8) + 0.6) / 2
	assert.Equal(t, 0.6, analysis.Groups[0].Average)
}

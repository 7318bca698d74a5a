package model

// ResultKey identifies at most one result row
type ResultKey struct {
	PromptID    int64 `json:"promptId"`
	MetricID    int64 `json:"metricId"`
	ModelID     int64 `json:"modelId"`
	BenchmarkID int64 `json:"benchmarkId"`
}

// Result is one judge verdict for a (prompt, metric, model) triple within a
// benchmark run. ModelName, MetricName and TestCaseID are denormalized by
// ResultStore.Search for the analytics pipeline; they are not persisted on
// the row itself.
type Result struct {
	ID           int64   `json:"id"`
	PromptID     int64   `json:"promptId"`
	MetricID     int64   `json:"metricId"`
	ModelID      int64   `json:"modelId"`
	BenchmarkID  int64   `json:"benchmarkId"`
	ActualOutput string  `json:"actualOutput"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"`
	Logs         string  `json:"logs"`

	ModelName  string `json:"modelName,omitempty"`
	MetricName string `json:"metricName,omitempty"`
	TestCaseID int64  `json:"testCaseId,omitempty"`
}

// Key returns the identifying tuple of the result
func (r *Result) Key() ResultKey {
	return ResultKey{
		PromptID:    r.PromptID,
		MetricID:    r.MetricID,
		ModelID:     r.ModelID,
		BenchmarkID: r.BenchmarkID,
	}
}

// ResultFilter restricts a result search. Empty slices mean no restriction
// on that dimension.
type ResultFilter struct {
	PromptIDs    []int64
	MetricIDs    []int64
	ModelIDs     []int64
	TestCaseIDs  []int64
	BenchmarkIDs []int64
}

// WorkItem is one evaluation unit awaiting judge-service scoring. It is
// never persisted; it doubles as the task queue payload.
type WorkItem struct {
	PromptID    int64 `json:"prompt_id"`
	MetricID    int64 `json:"metric_id"`
	ModelID     int64 `json:"model_id"`
	BenchmarkID int64 `json:"benchmark_id"`
	Attempt     int   `json:"attempt"`
}

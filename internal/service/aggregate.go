package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/taleval/taleval/internal/model"
)

// GroupDimension names the axis the aggregation groups scores on
type GroupDimension string

const (
	GroupModel     GroupDimension = "model"
	GroupMetric    GroupDimension = "metric"
	GroupTestCase  GroupDimension = "test_case"
	GroupBenchmark GroupDimension = "benchmark"
	GroupPrompt    GroupDimension = "prompt"
)

// ParseGroupDimension maps a request string to a grouping dimension. The
// empty string defaults to model.
func ParseGroupDimension(s string) (GroupDimension, error) {
	switch s {
	case "":
		return GroupModel, nil
	case "model", "metric", "test_case", "benchmark", "prompt":
		return GroupDimension(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGroup, s)
	}
}

// OverallStats summarizes the whole result set
type OverallStats struct {
	AverageScore float64 `json:"averageScore"`
	TotalTests   int     `json:"totalTests"`
	TotalScore   float64 `json:"totalScore"`
}

// GroupStats summarizes one group along the chosen dimension
type GroupStats struct {
	Name    string    `json:"name"`
	Average float64   `json:"average"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Count   int       `json:"count"`
	Scores  []float64 `json:"scores"`
}

// ModelMetricStats summarizes one model x metric combination for the
// test-case analysis view. Scores are sorted ascending.
type ModelMetricStats struct {
	ModelID    int64     `json:"modelId"`
	ModelName  string    `json:"modelName"`
	MetricID   int64     `json:"metricId"`
	MetricName string    `json:"metricName"`
	Score      float64   `json:"score"`
	Count      int       `json:"count"`
	Scores     []float64 `json:"scores"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
}

// Analysis is the aggregation of a deduplicated result set
type Analysis struct {
	Overall      OverallStats       `json:"overall"`
	Groups       []GroupStats       `json:"groups"`
	ModelMetrics []ModelMetricStats `json:"modelMetrics,omitempty"`
	Results      []*model.Result    `json:"results,omitempty"`
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// Aggregate computes overall and per-group statistics over an already
// deduplicated result set. Group order follows first appearance; an empty
// input yields zeroed overall stats and no groups.
func Aggregate(results []*model.Result, dim GroupDimension) *Analysis {
	a := &Analysis{Results: results}
	if len(results) == 0 {
		return a
	}

	total := 0.0
	for _, r := range results {
		total += r.Score
	}
	a.Overall = OverallStats{
		AverageScore: round3(total / float64(len(results))),
		TotalTests:   len(results),
		TotalScore:   round3(total),
	}

	order := make([]string, 0)
	buckets := make(map[string][]float64)
	for _, r := range results {
		name := groupName(r, dim)
		if _, seen := buckets[name]; !seen {
			order = append(order, name)
		}
		buckets[name] = append(buckets[name], r.Score)
	}

	for _, name := range order {
		scores := buckets[name]
		a.Groups = append(a.Groups, groupStats(name, scores))
	}

	if dim == GroupTestCase {
		a.ModelMetrics = modelMetricStats(results)
	}
	return a
}

func groupName(r *model.Result, dim GroupDimension) string {
	switch dim {
	case GroupModel:
		return r.ModelName
	case GroupMetric:
		return r.MetricName
	case GroupTestCase:
		return strconv.FormatInt(r.TestCaseID, 10)
	case GroupBenchmark:
		return strconv.FormatInt(r.BenchmarkID, 10)
	case GroupPrompt:
		return strconv.FormatInt(r.PromptID, 10)
	default:
		return r.ModelName
	}
}

func groupStats(name string, scores []float64) GroupStats {
	sum := scores[0]
	min := scores[0]
	max := scores[0]
	for _, s := range scores[1:] {
		sum += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return GroupStats{
		Name:    name,
		Average: round3(sum / float64(len(scores))),
		Min:     min,
		Max:     max,
		Count:   len(scores),
		Scores:  scores,
	}
}

type modelMetricKey struct {
	modelID  int64
	metricID int64
}

// modelMetricStats builds the model x metric breakdown: one entry per
// combination, scores sorted ascending, combinations sorted by descending
// average score.
func modelMetricStats(results []*model.Result) []ModelMetricStats {
	buckets := make(map[modelMetricKey][]*model.Result)
	order := make([]modelMetricKey, 0)
	for _, r := range results {
		k := modelMetricKey{modelID: r.ModelID, metricID: r.MetricID}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], r)
	}

	out := make([]ModelMetricStats, 0, len(order))
	for _, k := range order {
		group := buckets[k]
		scores := make([]float64, 0, len(group))
		sum := 0.0
		for _, r := range group {
			scores = append(scores, r.Score)
			sum += r.Score
		}
		sort.Float64s(scores)
		out = append(out, ModelMetricStats{
			ModelID:    k.modelID,
			ModelName:  group[0].ModelName,
			MetricID:   k.metricID,
			MetricName: group[0].MetricName,
			Score:      round3(sum / float64(len(group))),
			Count:      len(group),
			Scores:     scores,
			Min:        scores[0],
			Max:        scores[len(scores)-1],
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

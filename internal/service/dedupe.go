package service

import (
	"fmt"

	"github.com/taleval/taleval/internal/model"
)

// Strategy selects how results sharing a (prompt, metric, model) identity
// across benchmark runs are collapsed before aggregation.
type Strategy string

const (
	// StrategyAll keeps every result
	StrategyAll Strategy = "all"
	// StrategyLatest keeps the result from the most recent benchmark run
	StrategyLatest Strategy = "latest"
	// StrategyAverage collapses duplicates into one result with the mean score
	StrategyAverage Strategy = "average"
)

// ParseStrategy maps a request string to a deduplication strategy. The
// empty string defaults to latest; "avg" is accepted as an alias.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "":
		return StrategyLatest, nil
	case "all":
		return StrategyAll, nil
	case "latest":
		return StrategyLatest, nil
	case "average", "avg":
		return StrategyAverage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

type dedupeKey struct {
	promptID int64
	metricID int64
	modelID  int64
}

// Deduplicate collapses results by (prompt, metric, model) identity,
// ignoring which benchmark produced them. Group order follows first
// appearance in the input, so output order is stable for a given search.
func Deduplicate(results []*model.Result, strategy Strategy) []*model.Result {
	if strategy == StrategyAll {
		return results
	}

	order := make([]dedupeKey, 0, len(results))
	groups := make(map[dedupeKey][]*model.Result, len(results))
	for _, r := range results {
		k := dedupeKey{promptID: r.PromptID, metricID: r.MetricID, modelID: r.ModelID}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]*model.Result, 0, len(order))
	for _, k := range order {
		switch strategy {
		case StrategyLatest:
			out = append(out, latest(groups[k]))
		case StrategyAverage:
			out = append(out, averaged(groups[k]))
		}
	}
	return out
}

// latest picks the result of the highest benchmark id, breaking ties on the
// highest result id.
func latest(group []*model.Result) *model.Result {
	best := group[0]
	for _, r := range group[1:] {
		if r.BenchmarkID > best.BenchmarkID ||
			(r.BenchmarkID == best.BenchmarkID && r.ID > best.ID) {
			best = r
		}
	}
	return best
}

// averaged returns a copy of the group's first result carrying the mean
// score of all members.
func averaged(group []*model.Result) *model.Result {
	sum := 0.0
	for _, r := range group {
		sum += r.Score
	}
	merged := *group[0]
	merged.Score = sum / float64(len(group))
	return &merged
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/model"
)

// Expander cross-products a benchmark's test cases, prompts, metrics and
// models into evaluation work items.
type Expander struct {
	benchmarks BenchmarkStore
	results    ResultStore
	log        *zap.Logger
}

// NewExpander creates a work item expander
func NewExpander(benchmarks BenchmarkStore, results ResultStore) *Expander {
	return &Expander{
		benchmarks: benchmarks,
		results:    results,
		log:        zap.L().With(zap.String("component", "expander")),
	}
}

// Expand yields every (prompt, metric, model) triple of the benchmark whose
// prompt satisfies the metric's parameters. The sequence is single-pass and
// non-restartable; yield is called once per item.
//
// A prompt that fails a metric's parameter check is skipped entirely (no
// remaining metrics are tried for it). On a full run the skip is recorded
// as a benchmark error; on a missing-only run it is silent, since older
// benchmarks may predate newer prompt fields. When onlyMissing is true,
// triples that already have a result for this benchmark are skipped.
//
// An unknown metric parameter aborts expansion with
// ErrInvalidMetricParameter; the caller records it and dispatches nothing.
func (e *Expander) Expand(ctx context.Context, b *model.Benchmark, onlyMissing bool, yield func(model.WorkItem) error) error {
	for _, testCase := range b.TestCases {
	prompts:
		for _, prompt := range testCase.Prompts {
			for _, metric := range b.Metrics {
				ok, missing, err := Satisfies(prompt, metric)
				if err != nil {
					return err
				}
				if !ok {
					if !onlyMissing {
						e.log.Warn("Benchmark parameter not satisfied",
							zap.Int64("benchmark_id", b.ID),
							zap.Int64("test_case_id", testCase.ID),
							zap.Int64("prompt_id", prompt.ID),
							zap.Int64("metric_id", metric.ID),
							zap.String("missing_param", string(missing)))

						msg := fmt.Sprintf("Test skipped due to benchmark parameter not satisfied: %s for prompt %d",
							missing, prompt.ID)
						if err := e.recordError(ctx, b.ID, msg); err != nil {
							return err
						}
					}
					continue prompts
				}

				for _, mdl := range b.Models {
					if onlyMissing {
						existing, err := e.results.Find(ctx, model.ResultKey{
							PromptID:    prompt.ID,
							MetricID:    metric.ID,
							ModelID:     mdl.ID,
							BenchmarkID: b.ID,
						})
						if err != nil {
							return err
						}
						if existing != nil {
							continue
						}
					}

					item := model.WorkItem{
						PromptID:    prompt.ID,
						MetricID:    metric.ID,
						ModelID:     mdl.ID,
						BenchmarkID: b.ID,
						Attempt:     1,
					}
					if err := yield(item); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// ExpectedCount returns the size of the full satisfying set, independent of
// existing results. Progress accounting always uses this count, so a
// missing-only run converges to the same 100% as a full one. Unlike Expand,
// an unsatisfied pair does not suppress the prompt's remaining metrics, and
// a malformed metric counts as unsatisfied rather than failing.
func (e *Expander) ExpectedCount(b *model.Benchmark) int {
	count := 0
	for _, testCase := range b.TestCases {
		for _, prompt := range testCase.Prompts {
			for _, metric := range b.Metrics {
				ok, _, err := Satisfies(prompt, metric)
				if err == nil && ok {
					count += len(b.Models)
				}
			}
		}
	}
	return count
}

func (e *Expander) recordError(ctx context.Context, benchmarkID int64, msg string) error {
	return e.benchmarks.Update(ctx, benchmarkID, func(s *model.BenchmarkState) error {
		s.AddError(msg)
		return nil
	})
}

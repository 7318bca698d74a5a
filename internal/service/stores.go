package service

import (
	"context"

	"github.com/taleval/taleval/internal/judge"
	"github.com/taleval/taleval/internal/model"
)

// BenchmarkStore loads benchmark aggregates and serializes mutations of
// their run state. Update must apply mutate atomically with respect to
// concurrent Update calls for the same benchmark.
type BenchmarkStore interface {
	// Find returns (nil, nil) when the benchmark does not exist
	Find(ctx context.Context, id int64) (*model.Benchmark, error)
	Update(ctx context.Context, id int64, mutate func(*model.BenchmarkState) error) error
}

// ResultStore persists judge verdicts
type ResultStore interface {
	// Find returns (nil, nil) when no result exists for the key
	Find(ctx context.Context, key model.ResultKey) (*model.Result, error)
	Upsert(ctx context.Context, result *model.Result) error
	Delete(ctx context.Context, key model.ResultKey) error
	CountByBenchmark(ctx context.Context, benchmarkID int64) (int, error)
	Search(ctx context.Context, filter model.ResultFilter) ([]model.Result, error)
}

// SettingStore reads named configuration values
type SettingStore interface {
	// Value returns the empty string when the setting is unset
	Value(ctx context.Context, name string) (string, error)
}

// Judge scores one evaluation request
type Judge interface {
	Evaluate(ctx context.Context, req judge.Request) (judge.Response, error)
}

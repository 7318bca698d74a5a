package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/model"
)

// ProgressTracker recomputes a benchmark's completion percentage from the
// stored result count. Recomputation for a given benchmark is serialized so
// concurrent workers finishing at the same time cannot interleave the
// read-compare-write and move progress backwards.
type ProgressTracker struct {
	benchmarks BenchmarkStore
	results    ResultStore
	expander   *Expander
	log        *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewProgressTracker creates a progress tracker
func NewProgressTracker(benchmarks BenchmarkStore, results ResultStore, expander *Expander) *ProgressTracker {
	return &ProgressTracker{
		benchmarks: benchmarks,
		results:    results,
		expander:   expander,
		log:        zap.L().With(zap.String("component", "progress")),
		locks:      make(map[int64]*sync.Mutex),
	}
}

func (t *ProgressTracker) lock(benchmarkID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[benchmarkID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[benchmarkID] = l
	}
	return l
}

// Recompute derives progress from the completed result count over the
// expected total. Progress never decreases; once all expected results exist
// the benchmark is pinned at 100 and its finish timestamp is set exactly
// once. A benchmark that expects zero results never finishes.
func (t *ProgressTracker) Recompute(ctx context.Context, benchmarkID int64) error {
	l := t.lock(benchmarkID)
	l.Lock()
	defer l.Unlock()

	b, err := t.benchmarks.Find(ctx, benchmarkID)
	if err != nil {
		return err
	}
	if b == nil {
		return ErrBenchmarkNotFound
	}

	expected := t.expander.ExpectedCount(b)
	if expected <= 0 {
		return nil
	}

	completed, err := t.results.CountByBenchmark(ctx, benchmarkID)
	if err != nil {
		return err
	}

	pct := completed * 100 / expected
	if pct > 100 {
		pct = 100
	}

	done := false
	err = t.benchmarks.Update(ctx, benchmarkID, func(s *model.BenchmarkState) error {
		if s.Progress != nil && *s.Progress > pct {
			pct = *s.Progress
		}
		if completed >= expected {
			s.SetProgress(100)
			if s.FinishedAt == nil {
				now := time.Now().UTC()
				s.FinishedAt = &now
				done = true
			}
			return nil
		}
		s.SetProgress(pct)
		return nil
	})
	if err != nil {
		return err
	}

	if done {
		t.log.Info("Benchmark completed",
			zap.Int64("benchmark_id", benchmarkID),
			zap.Int("results", completed))
	}
	return nil
}

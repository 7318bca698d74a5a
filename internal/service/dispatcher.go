package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/model"
	"github.com/taleval/taleval/internal/queue"
)

// Dispatcher expands a benchmark into work items and fans them out to the
// task queue. It does not wait for evaluations to complete.
type Dispatcher struct {
	benchmarks BenchmarkStore
	expander   *Expander
	queue      queue.Queue
	log        *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(benchmarks BenchmarkStore, expander *Expander, q queue.Queue) *Dispatcher {
	return &Dispatcher{
		benchmarks: benchmarks,
		expander:   expander,
		queue:      q,
		log:        zap.L().With(zap.String("component", "dispatcher")),
	}
}

// Start transitions a benchmark into a fresh full run. A benchmark that is
// started but not finished is rejected; a finished one restarts with its
// timestamps, errors and progress reset. The caller dispatches afterwards.
func (d *Dispatcher) Start(ctx context.Context, benchmarkID int64) (*model.Benchmark, error) {
	b, err := d.benchmarks.Find(ctx, benchmarkID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBenchmarkNotFound
	}
	if b.Running() {
		return nil, ErrBenchmarkRunning
	}

	now := time.Now().UTC()
	err = d.benchmarks.Update(ctx, benchmarkID, func(s *model.BenchmarkState) error {
		s.StartedAt = &now
		s.FinishedAt = nil
		s.ClearErrors()
		s.ResetProgress()
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.StartedAt = &now
	b.FinishedAt = nil
	b.ClearErrors()
	b.ResetProgress()
	return b, nil
}

// StartMissing prepares a gap-fill run. Only finished benchmarks qualify;
// the original timestamps are kept, errors and progress are reset.
func (d *Dispatcher) StartMissing(ctx context.Context, benchmarkID int64) (*model.Benchmark, error) {
	b, err := d.benchmarks.Find(ctx, benchmarkID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBenchmarkNotFound
	}
	if !b.Finished() {
		return nil, ErrBenchmarkNotFinished
	}

	err = d.benchmarks.Update(ctx, benchmarkID, func(s *model.BenchmarkState) error {
		s.ClearErrors()
		s.ResetProgress()
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.ClearErrors()
	b.ResetProgress()
	return b, nil
}

// Dispatch expands the benchmark and enqueues one evaluation task per work
// item, returning the dispatched count. A fatal expansion error is recorded
// on the benchmark and aborts the run with nothing dispatched; everything
// downstream is soft failure handled by the workers.
func (d *Dispatcher) Dispatch(ctx context.Context, benchmarkID int64, onlyMissing bool) (int, error) {
	b, err := d.benchmarks.Find(ctx, benchmarkID)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, ErrBenchmarkNotFound
	}

	log := d.log.With(
		zap.Int64("benchmark_id", benchmarkID),
		zap.String("run_id", uuid.NewString()),
		zap.Bool("only_missing", onlyMissing))
	log.Info("Starting benchmark execution")

	if !onlyMissing {
		err = d.benchmarks.Update(ctx, benchmarkID, func(s *model.BenchmarkState) error {
			s.ClearErrors()
			s.SetProgress(0)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	var items []model.WorkItem
	err = d.expander.Expand(ctx, b, onlyMissing, func(item model.WorkItem) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		log.Error("Benchmark execution failed", zap.Error(err))
		d.recordError(ctx, benchmarkID, "Benchmark execution failed: "+err.Error())
		return 0, err
	}

	if len(items) == 0 && onlyMissing {
		log.Info("No missing results found for benchmark")
		d.recordError(ctx, benchmarkID, "No missing results to run")
		return 0, nil
	}

	dispatched := 0
	for _, item := range items {
		if err := d.queue.Enqueue(ctx, item); err != nil {
			log.Error("Failed to enqueue work item",
				zap.Int("dispatched", dispatched),
				zap.Error(err))
			d.recordError(ctx, benchmarkID, "Benchmark execution failed: "+err.Error())
			return dispatched, err
		}
		dispatched++
	}

	log.Info("Benchmark execution dispatched",
		zap.Int("work_items", dispatched))
	return dispatched, nil
}

func (d *Dispatcher) recordError(ctx context.Context, benchmarkID int64, msg string) {
	err := d.benchmarks.Update(ctx, benchmarkID, func(s *model.BenchmarkState) error {
		s.AddError(msg)
		return nil
	})
	if err != nil {
		d.log.Error("Failed to record benchmark error",
			zap.Int64("benchmark_id", benchmarkID),
			zap.Error(err))
	}
}

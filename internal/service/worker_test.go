package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleval/taleval/internal/judge"
	"github.com/taleval/taleval/internal/model"
)

type workerFixture struct {
	benchmarks *fakeBenchmarkStore
	results    *fakeResultStore
	judge      *fakeJudge
	queue      *captureQueue
	worker     *Worker
}

func newWorkerFixture(t *testing.T, b *model.Benchmark, j *fakeJudge) *workerFixture {
	t.Helper()
	benchmarks := newFakeBenchmarkStore(b)
	results := newFakeResultStore()
	settings := &fakeSettingStore{values: map[string]string{
		"system_prompt": "Use the context: {context}",
	}}
	q := &captureQueue{}
	expander := NewExpander(benchmarks, results)
	progress := NewProgressTracker(benchmarks, results, expander)
	w := NewWorker(benchmarks, results, settings, j, q, progress, WorkerConfig{
		Concurrency: 2,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})
	return &workerFixture{
		benchmarks: benchmarks,
		results:    results,
		judge:      j,
		queue:      q,
		worker:     w,
	}
}

func item(promptID, metricID, modelID int64) model.WorkItem {
	return model.WorkItem{
		PromptID:    promptID,
		MetricID:    metricID,
		ModelID:     modelID,
		BenchmarkID: 1,
		Attempt:     1,
	}
}

func TestEvaluateStoresResult(t *testing.T) {
	j := &fakeJudge{response: judge.Response{ActualOutput: "answer", Score: 0.9, Reason: "good"}}
	f := newWorkerFixture(t, twoByTwo(1), j)
	ctx := context.Background()

	f.worker.Evaluate(ctx, item(101, 201, 301))

	r, err := f.results.Find(ctx, model.ResultKey{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "answer", r.ActualOutput)
	assert.Equal(t, 0.9, r.Score)
	assert.Equal(t, "good", r.Reason)
	assert.Empty(t, f.benchmarks.state(1).Errors)
}

func TestEvaluateIsIdempotentPerKey(t *testing.T) {
	j := &fakeJudge{response: judge.Response{Score: 0.5}}
	f := newWorkerFixture(t, twoByTwo(1), j)
	ctx := context.Background()

	f.worker.Evaluate(ctx, item(101, 201, 301))
	first, err := f.results.Find(ctx, model.ResultKey{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1})
	require.NoError(t, err)
	require.NotNil(t, first)

	j.response = judge.Response{Score: 0.8}
	f.worker.Evaluate(ctx, item(101, 201, 301))

	second, err := f.results.Find(ctx, model.ResultKey{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1})
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.8, second.Score)

	count, err := f.results.CountByBenchmark(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEvaluateRetriesThenSucceeds(t *testing.T) {
	j := &fakeJudge{failures: 1, response: judge.Response{Score: 0.7}}
	f := newWorkerFixture(t, twoByTwo(1), j)
	ctx := context.Background()

	f.worker.Evaluate(ctx, item(101, 201, 301))

	// first attempt failed and re-enqueued with the attempt bumped
	require.Len(t, f.queue.items, 1)
	retry := f.queue.items[0]
	assert.Equal(t, 2, retry.Attempt)
	assert.Empty(t, f.benchmarks.state(1).Errors)

	f.worker.Evaluate(ctx, retry)

	r, err := f.results.Find(ctx, model.ResultKey{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 0.7, r.Score)
	assert.Equal(t, 2, j.calls)
}

func TestEvaluateFinalFailureRecordsErrorAndRemovesResult(t *testing.T) {
	j := &fakeJudge{failures: 2}
	f := newWorkerFixture(t, twoByTwo(1), j)
	ctx := context.Background()

	// a result from an earlier run must not survive a failed re-evaluation
	require.NoError(t, f.results.Upsert(ctx, &model.Result{
		PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1, Score: 0.4,
	}))

	f.worker.Evaluate(ctx, item(101, 201, 301))
	require.Len(t, f.queue.items, 1)
	f.worker.Evaluate(ctx, f.queue.items[0])

	errs := f.benchmarks.state(1).Errors
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Evaluation failed for prompt 101, metric 201, model 301 after 2 attempts")

	r, err := f.results.Find(ctx, model.ResultKey{PromptID: 101, MetricID: 201, ModelID: 301, BenchmarkID: 1})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestEvaluateUnknownEntityDoesNothing(t *testing.T) {
	j := &fakeJudge{response: judge.Response{Score: 1}}
	f := newWorkerFixture(t, twoByTwo(1), j)
	ctx := context.Background()

	f.worker.Evaluate(ctx, item(999, 201, 301))

	assert.Zero(t, j.calls)
	assert.Empty(t, f.queue.items)
	count, err := f.results.CountByBenchmark(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEvaluateUpdatesProgress(t *testing.T) {
	j := &fakeJudge{response: judge.Response{Score: 1}}
	b := twoByTwo(1)
	f := newWorkerFixture(t, b, j)
	ctx := context.Background()

	f.worker.Evaluate(ctx, item(101, 201, 301))

	state := f.benchmarks.state(1)
	require.NotNil(t, state.Progress)
	// 1 of 8 expected results
	assert.Equal(t, 12, *state.Progress)
	assert.Nil(t, state.FinishedAt)
}

func TestSystemPromptSubstitution(t *testing.T) {
	j := &fakeJudge{response: judge.Response{Score: 1}}
	f := newWorkerFixture(t, twoByTwo(1), j)

	var captured judge.Request
	f.worker.judge = judgeFunc(func(ctx context.Context, req judge.Request) (judge.Response, error) {
		captured = req
		return judge.Response{Score: 1}, nil
	})

	f.worker.Evaluate(context.Background(), item(101, 201, 301))

	assert.Equal(t, "Use the context: c1", captured.SystemPrompt)
	assert.Equal(t, "q1", captured.Prompt.Input)
	assert.Equal(t, "a1", captured.Prompt.ExpectedOutput)
}

type judgeFunc func(ctx context.Context, req judge.Request) (judge.Response, error)

func (f judgeFunc) Evaluate(ctx context.Context, req judge.Request) (judge.Response, error) {
	return f(ctx, req)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleval/taleval/internal/model"
)

func newDispatcherUnderTest(benchmarks *fakeBenchmarkStore, results *fakeResultStore) (*Dispatcher, *captureQueue) {
	q := &captureQueue{}
	e := NewExpander(benchmarks, results)
	return NewDispatcher(benchmarks, e, q), q
}

func TestStartFreshBenchmark(t *testing.T) {
	benchmarks := newFakeBenchmarkStore(twoByTwo(1))
	d, _ := newDispatcherUnderTest(benchmarks, newFakeResultStore())

	b, err := d.Start(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, b.StartedAt)
	assert.Nil(t, b.FinishedAt)
	assert.True(t, b.Running())

	state := benchmarks.state(1)
	assert.NotNil(t, state.StartedAt)
	assert.Nil(t, state.FinishedAt)
}

func TestStartRejectsRunningBenchmark(t *testing.T) {
	b := twoByTwo(1)
	now := time.Now().UTC()
	b.StartedAt = &now
	d, _ := newDispatcherUnderTest(newFakeBenchmarkStore(b), newFakeResultStore())

	_, err := d.Start(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBenchmarkRunning)
}

func TestStartUnknownBenchmark(t *testing.T) {
	d, _ := newDispatcherUnderTest(newFakeBenchmarkStore(), newFakeResultStore())

	_, err := d.Start(context.Background(), 99)
	assert.ErrorIs(t, err, ErrBenchmarkNotFound)
}

func TestStartRestartResetsState(t *testing.T) {
	b := twoByTwo(1)
	started := time.Now().UTC().Add(-time.Hour)
	finished := started.Add(time.Minute)
	b.StartedAt = &started
	b.FinishedAt = &finished
	b.SetProgress(100)
	b.AddError("old failure")
	benchmarks := newFakeBenchmarkStore(b)
	d, _ := newDispatcherUnderTest(benchmarks, newFakeResultStore())

	restarted, err := d.Start(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, restarted.StartedAt.After(started))
	assert.Nil(t, restarted.FinishedAt)
	assert.Nil(t, restarted.Progress)
	assert.Empty(t, restarted.Errors)
}

func TestStartMissingRequiresFinishedBenchmark(t *testing.T) {
	b := twoByTwo(1)
	d, _ := newDispatcherUnderTest(newFakeBenchmarkStore(b), newFakeResultStore())

	_, err := d.StartMissing(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBenchmarkNotFinished)
}

func TestStartMissingKeepsTimestamps(t *testing.T) {
	b := twoByTwo(1)
	started := time.Now().UTC().Add(-time.Hour)
	finished := started.Add(time.Minute)
	b.StartedAt = &started
	b.FinishedAt = &finished
	b.SetProgress(100)
	b.AddError("old failure")
	benchmarks := newFakeBenchmarkStore(b)
	d, _ := newDispatcherUnderTest(benchmarks, newFakeResultStore())

	prepared, err := d.StartMissing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, started, *prepared.StartedAt)
	assert.Equal(t, finished, *prepared.FinishedAt)
	assert.Nil(t, prepared.Progress)
	assert.Empty(t, prepared.Errors)
}

func TestDispatchEnqueuesAllItems(t *testing.T) {
	benchmarks := newFakeBenchmarkStore(twoByTwo(1))
	d, q := newDispatcherUnderTest(benchmarks, newFakeResultStore())

	n, err := d.Dispatch(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Len(t, q.items, 8)

	state := benchmarks.state(1)
	require.NotNil(t, state.Progress)
	assert.Equal(t, 0, *state.Progress)
}

func TestDispatchFullRunClearsPreviousErrors(t *testing.T) {
	b := twoByTwo(1)
	b.AddError("stale")
	benchmarks := newFakeBenchmarkStore(b)
	d, _ := newDispatcherUnderTest(benchmarks, newFakeResultStore())

	_, err := d.Dispatch(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Empty(t, benchmarks.state(1).Errors)
}

func TestDispatchFatalExpansionError(t *testing.T) {
	b := twoByTwo(1)
	b.Metrics[0].Params = []model.MetricParam{"bogus"}
	benchmarks := newFakeBenchmarkStore(b)
	d, q := newDispatcherUnderTest(benchmarks, newFakeResultStore())

	n, err := d.Dispatch(context.Background(), 1, false)
	assert.ErrorIs(t, err, ErrInvalidMetricParameter)
	assert.Zero(t, n)
	assert.Empty(t, q.items)

	errs := benchmarks.state(1).Errors
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Benchmark execution failed")
}

func TestDispatchMissingOnlyWithNothingToRun(t *testing.T) {
	b := twoByTwo(1)
	benchmarks := newFakeBenchmarkStore(b)
	results := newFakeResultStore()
	ctx := context.Background()
	for _, tc := range b.TestCases {
		for _, p := range tc.Prompts {
			for _, m := range b.Metrics {
				for _, mdl := range b.Models {
					require.NoError(t, results.Upsert(ctx, &model.Result{
						PromptID: p.ID, MetricID: m.ID, ModelID: mdl.ID, BenchmarkID: b.ID,
					}))
				}
			}
		}
	}
	d, q := newDispatcherUnderTest(benchmarks, results)

	n, err := d.Dispatch(ctx, 1, true)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.items)

	errs := benchmarks.state(1).Errors
	require.Len(t, errs, 1)
	assert.Equal(t, "No missing results to run", errs[0].Message)
}

package service

import (
	"context"
	"errors"
	"sync"

	"github.com/taleval/taleval/internal/judge"
	"github.com/taleval/taleval/internal/model"
)

type fakeBenchmarkStore struct {
	mu         sync.Mutex
	benchmarks map[int64]*model.Benchmark
	findErr    error
	updateErr  error
}

func newFakeBenchmarkStore(benchmarks ...*model.Benchmark) *fakeBenchmarkStore {
	s := &fakeBenchmarkStore{benchmarks: make(map[int64]*model.Benchmark)}
	for _, b := range benchmarks {
		s.benchmarks[b.ID] = b
	}
	return s
}

func (s *fakeBenchmarkStore) Find(ctx context.Context, id int64) (*model.Benchmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	b, ok := s.benchmarks[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	clone.Errors = append([]model.BenchmarkError(nil), b.Errors...)
	if b.Progress != nil {
		p := *b.Progress
		clone.Progress = &p
	}
	return &clone, nil
}

func (s *fakeBenchmarkStore) Update(ctx context.Context, id int64, mutate func(*model.BenchmarkState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	b, ok := s.benchmarks[id]
	if !ok {
		return errors.New("benchmark not found")
	}
	return mutate(&b.BenchmarkState)
}

func (s *fakeBenchmarkStore) state(id int64) *model.BenchmarkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.benchmarks[id].BenchmarkState
}

type fakeResultStore struct {
	mu      sync.Mutex
	results map[model.ResultKey]*model.Result
	nextID  int64
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[model.ResultKey]*model.Result)}
}

func (s *fakeResultStore) Find(ctx context.Context, key model.ResultKey) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[key]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

func (s *fakeResultStore) Upsert(ctx context.Context, result *model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := result.Key()
	if existing, ok := s.results[key]; ok {
		result.ID = existing.ID
	} else {
		s.nextID++
		result.ID = s.nextID
	}
	clone := *result
	s.results[key] = &clone
	return nil
}

func (s *fakeResultStore) Delete(ctx context.Context, key model.ResultKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, key)
	return nil
}

func (s *fakeResultStore) CountByBenchmark(ctx context.Context, benchmarkID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for key := range s.results {
		if key.BenchmarkID == benchmarkID {
			count++
		}
	}
	return count, nil
}

func (s *fakeResultStore) Search(ctx context.Context, filter model.ResultFilter) ([]model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Result
	for _, r := range s.results {
		if matchID(filter.PromptIDs, r.PromptID) &&
			matchID(filter.MetricIDs, r.MetricID) &&
			matchID(filter.ModelIDs, r.ModelID) &&
			matchID(filter.TestCaseIDs, r.TestCaseID) &&
			matchID(filter.BenchmarkIDs, r.BenchmarkID) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func matchID(ids []int64, id int64) bool {
	if len(ids) == 0 {
		return true
	}
	for _, want := range ids {
		if want == id {
			return true
		}
	}
	return false
}

type fakeSettingStore struct {
	values map[string]string
}

func (s *fakeSettingStore) Value(ctx context.Context, name string) (string, error) {
	return s.values[name], nil
}

// fakeJudge scripts per-call outcomes: failures counts down before
// successes begin.
type fakeJudge struct {
	mu       sync.Mutex
	failures int
	response judge.Response
	calls    int
}

func (j *fakeJudge) Evaluate(ctx context.Context, req judge.Request) (judge.Response, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.failures > 0 {
		j.failures--
		return judge.Response{}, errors.New("judge unavailable")
	}
	return j.response, nil
}

type captureQueue struct {
	mu    sync.Mutex
	items []model.WorkItem
}

func (q *captureQueue) Enqueue(ctx context.Context, item model.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *captureQueue) Dequeue(ctx context.Context) (model.WorkItem, error) {
	return model.WorkItem{}, errors.New("not implemented")
}

func (q *captureQueue) Close() error { return nil }

// twoByTwo builds a benchmark of one test case with two prompts, two
// metrics and two models, all parameters satisfied.
func twoByTwo(id int64) *model.Benchmark {
	return &model.Benchmark{
		ID:   id,
		Name: "bench",
		TestCases: []model.TestCase{{
			ID: 10,
			Prompts: []model.Prompt{
				{ID: 101, TestCaseID: 10, Input: "q1", ExpectedOutput: "a1", Context: "c1"},
				{ID: 102, TestCaseID: 10, Input: "q2", ExpectedOutput: "a2", Context: "c2"},
			},
		}},
		Metrics: []model.Metric{
			{ID: 201, Name: "correctness", Params: []model.MetricParam{model.ParamInput, model.ParamExpectedOutput}},
			{ID: 202, Name: "relevance", Params: []model.MetricParam{model.ParamInput, model.ParamActualOutput}},
		},
		Models: []model.Model{
			{ID: 301, Name: "model-a"},
			{ID: 302, Name: "model-b"},
		},
	}
}

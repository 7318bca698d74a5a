package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/judge"
	"github.com/taleval/taleval/internal/model"
	"github.com/taleval/taleval/internal/queue"
)

const systemPromptSetting = "system_prompt"

// WorkerConfig bounds the evaluation worker runtime
type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Worker consumes evaluation tasks from the queue, one (prompt, metric,
// model, benchmark) tuple per task. Tasks run independently; a failed task
// never aborts its siblings or the run.
type Worker struct {
	benchmarks BenchmarkStore
	results    ResultStore
	settings   SettingStore
	judge      Judge
	queue      queue.Queue
	progress   *ProgressTracker
	cfg        WorkerConfig
	log        *zap.Logger
}

// NewWorker creates an evaluation worker
func NewWorker(benchmarks BenchmarkStore, results ResultStore, settings SettingStore, j Judge, q queue.Queue, progress *ProgressTracker, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Worker{
		benchmarks: benchmarks,
		results:    results,
		settings:   settings,
		judge:      j,
		queue:      q,
		progress:   progress,
		cfg:        cfg,
		log:        zap.L().With(zap.String("component", "worker")),
	}
}

// Run consumes the queue until ctx is cancelled or the queue closes,
// evaluating tasks on a bounded goroutine pool.
func (w *Worker) Run(ctx context.Context) error {
	pool, err := ants.NewPool(w.cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	w.log.Info("Evaluation worker started",
		zap.Int("concurrency", w.cfg.Concurrency))

	var wg sync.WaitGroup
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			wg.Wait()
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.log.Info("Evaluation worker stopped")
				return nil
			}
			return err
		}

		task := item
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			w.Evaluate(ctx, task)
		}); err != nil {
			wg.Done()
			w.log.Error("Failed to submit task to pool", zap.Error(err))
		}
	}
}

// Drain evaluates every item currently in a memory queue inline, including
// retries a failed item re-enqueues. Used by the one-shot run command.
func (w *Worker) Drain(ctx context.Context, q *queue.Memory) int {
	processed := 0
	for {
		item, ok := q.TryDequeue()
		if !ok {
			return processed
		}
		w.Evaluate(ctx, item)
		processed++
	}
}

// Evaluate processes one work item end to end: judge call, idempotent
// result upsert, progress recomputation; on failure, bounded retry via
// re-enqueue and, after the last attempt, error recording plus removal of
// any stale result for the key.
func (w *Worker) Evaluate(ctx context.Context, item model.WorkItem) {
	log := w.log.With(
		zap.Int64("prompt_id", item.PromptID),
		zap.Int64("metric_id", item.MetricID),
		zap.Int64("model_id", item.ModelID),
		zap.Int64("benchmark_id", item.BenchmarkID),
		zap.Int("attempt", item.Attempt))

	b, err := w.benchmarks.Find(ctx, item.BenchmarkID)
	if err != nil {
		log.Error("Failed to load benchmark", zap.Error(err))
		return
	}
	if b == nil {
		log.Error("Benchmark not found for evaluation")
		return
	}

	prompt, metric, mdl, found := locate(b, item)
	if !found {
		log.Error("Entity not found for evaluation")
		return
	}

	key := model.ResultKey{
		PromptID:    item.PromptID,
		MetricID:    item.MetricID,
		ModelID:     item.ModelID,
		BenchmarkID: item.BenchmarkID,
	}

	existing, err := w.results.Find(ctx, key)
	if err != nil {
		w.fail(ctx, item, key, err, log)
		return
	}

	verdict, err := w.judge.Evaluate(ctx, w.buildRequest(ctx, prompt, metric, mdl))
	if err != nil {
		w.fail(ctx, item, key, err, log)
		return
	}

	result := &model.Result{
		PromptID:     item.PromptID,
		MetricID:     item.MetricID,
		ModelID:      item.ModelID,
		BenchmarkID:  item.BenchmarkID,
		ActualOutput: verdict.ActualOutput,
		Score:        verdict.Score,
		Reason:       verdict.Reason,
		Logs:         verdict.Logs,
	}
	if existing != nil {
		result.ID = existing.ID
	}

	if err := w.results.Upsert(ctx, result); err != nil {
		w.fail(ctx, item, key, err, log)
		return
	}

	action := "created"
	if existing != nil {
		action = "updated"
	}
	log.Info("Evaluation "+action,
		zap.Float64("score", verdict.Score))

	if err := w.progress.Recompute(ctx, item.BenchmarkID); err != nil {
		log.Error("Failed to update benchmark progress", zap.Error(err))
	}
}

// fail retries the item while attempts remain; otherwise it records the
// error on the benchmark and removes any existing result for the key, so a
// stored result always reflects the latest attempt's outcome.
func (w *Worker) fail(ctx context.Context, item model.WorkItem, key model.ResultKey, evalErr error, log *zap.Logger) {
	log.Warn("Evaluation attempt failed",
		zap.Int("max_attempts", w.cfg.MaxAttempts),
		zap.Error(evalErr))

	if item.Attempt < w.cfg.MaxAttempts {
		time.Sleep(w.cfg.RetryDelay)
		retry := item
		retry.Attempt++
		err := w.queue.Enqueue(ctx, retry)
		if err == nil {
			return
		}
		log.Error("Failed to enqueue retry", zap.Error(err))
	}

	msg := fmt.Sprintf("Evaluation failed for prompt %d, metric %d, model %d after %d attempts: %v",
		item.PromptID, item.MetricID, item.ModelID, w.cfg.MaxAttempts, evalErr)
	log.Error("Evaluation failed after all retries", zap.Error(evalErr))

	err := w.benchmarks.Update(ctx, item.BenchmarkID, func(s *model.BenchmarkState) error {
		s.AddError(msg)
		return nil
	})
	if err != nil {
		log.Error("Failed to record benchmark error", zap.Error(err))
	}

	existing, err := w.results.Find(ctx, key)
	if err != nil {
		log.Error("Failed to check for stale result", zap.Error(err))
		return
	}
	if existing != nil {
		if err := w.results.Delete(ctx, key); err != nil {
			log.Error("Failed to remove stale result", zap.Error(err))
			return
		}
		log.Info("Removed existing result due to evaluation failure")
	}
}

func (w *Worker) buildRequest(ctx context.Context, prompt model.Prompt, metric model.Metric, mdl model.Model) judge.Request {
	params := make([]string, 0, len(metric.Params))
	for _, p := range metric.Params {
		params = append(params, string(p))
	}

	return judge.Request{
		Prompt: judge.PromptPayload{
			Input:          prompt.Input,
			Output:         "",
			ExpectedOutput: prompt.ExpectedOutput,
			Context:        prompt.Context,
		},
		Model: judge.ModelPayload{
			Name: mdl.Name,
			URL:  mdl.Provider.APIURL,
			Key:  mdl.Provider.APIKey,
		},
		Metric: judge.MetricPayload{
			Name:       metric.Name,
			Type:       string(metric.Type),
			Definition: string(metric.Definition),
			Param:      params,
			Model: judge.ModelPayload{
				Name: metric.RatingModel.Name,
				URL:  metric.RatingModel.Provider.APIURL,
				Key:  metric.RatingModel.Provider.APIKey,
			},
		},
		SystemPrompt: w.systemPrompt(ctx, prompt),
	}
}

// systemPrompt loads the template and substitutes the {context} placeholder
// with the prompt's context; no template means no system prompt.
func (w *Worker) systemPrompt(ctx context.Context, prompt model.Prompt) string {
	template, err := w.settings.Value(ctx, systemPromptSetting)
	if err != nil {
		w.log.Warn("Failed to load system prompt setting", zap.Error(err))
		return ""
	}
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{context}", prompt.Context)
}

func locate(b *model.Benchmark, item model.WorkItem) (model.Prompt, model.Metric, model.Model, bool) {
	var prompt model.Prompt
	var metric model.Metric
	var mdl model.Model
	var foundPrompt, foundMetric, foundModel bool

	for _, tc := range b.TestCases {
		for _, p := range tc.Prompts {
			if p.ID == item.PromptID {
				prompt = p
				foundPrompt = true
			}
		}
	}
	for _, m := range b.Metrics {
		if m.ID == item.MetricID {
			metric = m
			foundMetric = true
		}
	}
	for _, m := range b.Models {
		if m.ID == item.ModelID {
			mdl = m
			foundModel = true
		}
	}

	return prompt, metric, mdl, foundPrompt && foundMetric && foundModel
}

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/judge"
	"github.com/taleval/taleval/internal/pkg/config"
	"github.com/taleval/taleval/internal/pkg/logger"
	"github.com/taleval/taleval/internal/queue"
	"github.com/taleval/taleval/internal/repository"
	"github.com/taleval/taleval/internal/service"
)

// app wires configuration, storage, queue and services for a command
type app struct {
	cfg        *config.Config
	db         *repository.DB
	queue      queue.Queue
	benchmarks *repository.BenchmarkRepo
	results    *repository.ResultRepo
	settings   *repository.SettingRepo
	expander   *service.Expander
	dispatcher *service.Dispatcher
	progress   *service.ProgressTracker
	worker     *service.Worker
	analytics  *service.Analytics
}

// newApp bootstraps the application. When forceMemoryQueue is set, the
// in-memory queue is used even if redis is configured; the one-shot run
// command needs this so it can drain its own tasks inline.
func newApp(forceMemoryQueue bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var q queue.Queue
	if cfg.UseRedisQueue() && !forceMemoryQueue {
		q, err = queue.NewRedis(cfg.GetRedisAddr(), cfg.RedisService.DB, cfg.RedisService.QueueKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	} else {
		// sized to hold a full dispatch; the run command enqueues everything
		// before draining
		q = queue.NewMemory(8192)
	}

	a := &app{
		cfg:        cfg,
		db:         db,
		queue:      q,
		benchmarks: repository.NewBenchmarkRepo(db),
		results:    repository.NewResultRepo(db),
		settings:   repository.NewSettingRepo(db),
	}

	a.expander = service.NewExpander(a.benchmarks, a.results)
	a.dispatcher = service.NewDispatcher(a.benchmarks, a.expander, a.queue)
	a.progress = service.NewProgressTracker(a.benchmarks, a.results, a.expander)
	a.analytics = service.NewAnalytics(a.results)

	client := judge.New(cfg.JudgeService.URL, cfg.JudgeTimeout())
	a.worker = service.NewWorker(a.benchmarks, a.results, a.settings, client, a.queue, a.progress, service.WorkerConfig{
		Concurrency: cfg.Worker.Concurrency,
		MaxAttempts: cfg.Worker.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
	})

	return a, nil
}

func (a *app) close() {
	if err := a.queue.Close(); err != nil {
		logger.Error("Failed to close queue", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}
	logger.Sync()
}

package benchmark

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/service"
)

// Handler serves benchmark execution endpoints
type Handler struct {
	dispatcher *service.Dispatcher
	benchmarks service.BenchmarkStore
}

// NewHandler creates the benchmark handler
func NewHandler(dispatcher *service.Dispatcher, benchmarks service.BenchmarkStore) *Handler {
	return &Handler{dispatcher: dispatcher, benchmarks: benchmarks}
}

func benchmarkID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("benchmark_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid benchmark id"})
		return 0, false
	}
	return id, true
}

// Start launches a full benchmark run
func (h *Handler) Start(c *gin.Context) {
	id, ok := benchmarkID(c)
	if !ok {
		return
	}

	if _, err := h.dispatcher.Start(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrBenchmarkNotFound):
			c.JSON(http.StatusNotFound, gin.H{"detail": "Benchmark not found"})
		case errors.Is(err, service.ErrBenchmarkRunning):
			c.JSON(http.StatusConflict, gin.H{"detail": "Benchmark is already running"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		}
		return
	}

	go h.dispatch(id, false)

	c.JSON(http.StatusAccepted, gin.H{
		"benchmark_id": id,
		"status":       "started",
		"message":      "Benchmark execution started",
	})
}

// StartMissing launches a run covering only combinations without a stored
// result. Only a finished benchmark is eligible.
func (h *Handler) StartMissing(c *gin.Context) {
	id, ok := benchmarkID(c)
	if !ok {
		return
	}

	if _, err := h.dispatcher.StartMissing(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrBenchmarkNotFound):
			c.JSON(http.StatusNotFound, gin.H{"detail": "Benchmark not found"})
		case errors.Is(err, service.ErrBenchmarkRunning):
			c.JSON(http.StatusConflict, gin.H{"detail": "Benchmark is already running"})
		case errors.Is(err, service.ErrBenchmarkNotFinished):
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Benchmark has not finished a full run"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		}
		return
	}

	go h.dispatch(id, true)

	c.JSON(http.StatusAccepted, gin.H{
		"benchmark_id": id,
		"status":       "started",
		"message":      "Missing evaluations started",
	})
}

// Status returns the run state of a benchmark
func (h *Handler) Status(c *gin.Context) {
	id, ok := benchmarkID(c)
	if !ok {
		return
	}

	b, err := h.benchmarks.Find(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Benchmark not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         b.ID,
		"name":       b.Name,
		"startedAt":  b.StartedAt,
		"finishedAt": b.FinishedAt,
		"progress":   b.Progress,
		"errors":     b.Errors,
		"running":    b.Running(),
	})
}

// dispatch expands and enqueues off the request goroutine; failures are
// recorded on the benchmark itself, so there is nothing to return here.
func (h *Handler) dispatch(id int64, onlyMissing bool) {
	if _, err := h.dispatcher.Dispatch(context.Background(), id, onlyMissing); err != nil {
		zap.L().Error("Benchmark dispatch failed",
			zap.Int64("benchmark_id", id),
			zap.Bool("only_missing", onlyMissing),
			zap.Error(err))
	}
}

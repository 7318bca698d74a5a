package service

import "errors"

// Configuration errors: surfaced immediately to the caller, never retried.
// Transient judge failures are ordinary wrapped errors handled by the
// worker's retry budget; they have no sentinel.
var (
	ErrInvalidMetricParameter = errors.New("unknown metric parameter")
	ErrUnknownGroup           = errors.New("unknown grouping dimension")
	ErrUnknownStrategy        = errors.New("unknown deduplication strategy")
	ErrInvalidIDFilter        = errors.New("invalid id filter")
	ErrInvalidPagination      = errors.New("invalid pagination")

	ErrBenchmarkNotFound    = errors.New("benchmark not found")
	ErrBenchmarkRunning     = errors.New("benchmark already started")
	ErrBenchmarkNotFinished = errors.New("benchmark must be finished to run missing parts")
)

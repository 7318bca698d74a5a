package model

import (
	"encoding/json"
	"time"
)

// Provider holds the credentials and endpoint a model is reached through
type Provider struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	APIURL string `json:"apiUrl"`
	APIKey string `json:"-"`
}

// Model is a language model under evaluation. Pricing fields are carried
// for reporting only.
type Model struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Provider    Provider `json:"provider"`
	InputPrice  float64  `json:"inputPrice"`
	OutputPrice float64  `json:"outputPrice"`
}

// Prompt is one input of a test case
type Prompt struct {
	ID             int64  `json:"id"`
	TestCaseID     int64  `json:"testCaseId"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Context        string `json:"context"`
}

// TestCase owns a set of prompts
type TestCase struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Prompts     []Prompt `json:"prompts"`
}

// Metric describes how a judge scores an output
type Metric struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Type        MetricType      `json:"type"`
	Definition  json.RawMessage `json:"definition"`
	Threshold   float64         `json:"threshold"`
	Params      []MetricParam   `json:"param"`
	RatingModel Model           `json:"ratingModel"`
}

// BenchmarkError is one entry of a benchmark's append-only error log
type BenchmarkError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BenchmarkState is the mutable portion of a benchmark, owned by the
// orchestrator during a run. All writes go through BenchmarkStore.Update so
// concurrent workers cannot lose updates.
type BenchmarkState struct {
	StartedAt  *time.Time       `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt"`
	Progress   *int             `json:"progress"`
	Errors     []BenchmarkError `json:"errors"`
}

// AddError appends a timestamped error record
func (s *BenchmarkState) AddError(msg string) {
	s.Errors = append(s.Errors, BenchmarkError{
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// ClearErrors drops the error log
func (s *BenchmarkState) ClearErrors() {
	s.Errors = nil
}

// ResetProgress unsets the progress value
func (s *BenchmarkState) ResetProgress() {
	s.Progress = nil
}

// SetProgress stores a progress percentage clamped to [0,100]
func (s *BenchmarkState) SetProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	s.Progress = &p
}

// Running reports whether a run is in flight
func (s *BenchmarkState) Running() bool {
	return s.StartedAt != nil && s.FinishedAt == nil
}

// Finished reports whether the benchmark reached the terminal state
func (s *BenchmarkState) Finished() bool {
	return s.StartedAt != nil && s.FinishedAt != nil
}

// Benchmark is a model x metric x test-case combination to execute
type Benchmark struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	BenchmarkState
	TestCases []TestCase `json:"testCases"`
	Metrics   []Metric   `json:"metrics"`
	Models    []Model    `json:"models"`
}

// Setting is a named configuration value, e.g. the system_prompt template
type Setting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

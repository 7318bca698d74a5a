package model

import "fmt"

// MetricParam is an input a metric requires from a prompt before it can be
// evaluated. actual_output is produced during evaluation and is never a
// precondition.
type MetricParam string

const (
	ParamInput          MetricParam = "input"
	ParamActualOutput   MetricParam = "actual_output"
	ParamExpectedOutput MetricParam = "expected_output"
	ParamContext        MetricParam = "context"
)

// ParseMetricParam validates a stored parameter value
func ParseMetricParam(s string) (MetricParam, error) {
	switch MetricParam(s) {
	case ParamInput, ParamActualOutput, ParamExpectedOutput, ParamContext:
		return MetricParam(s), nil
	}
	return "", fmt.Errorf("unknown metric parameter %q", s)
}

// MetricType identifies the evaluator a metric definition configures
type MetricType string

const (
	TypeGEval MetricType = "g-eval"
	TypeDAG   MetricType = "dag"
	TypeTale  MetricType = "tale"
)

// Label returns the display name of the metric type
func (t MetricType) Label() string {
	switch t {
	case TypeGEval:
		return "G-Eval"
	case TypeDAG:
		return "DAG (Directed Acyclic Graph)"
	case TypeTale:
		return "TALE (Tool-Augmented LLM Evaluation)"
	}
	return string(t)
}

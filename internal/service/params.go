package service

import (
	"fmt"

	"github.com/taleval/taleval/internal/model"
)

// Satisfies reports whether the prompt supplies every input the metric
// requires. It short-circuits on the first unmet parameter and returns it.
// actual_output is produced during evaluation and always passes. An
// unrecognized parameter value is a configuration error, not a skip.
func Satisfies(prompt model.Prompt, metric model.Metric) (bool, model.MetricParam, error) {
	for _, param := range metric.Params {
		var ok bool
		switch param {
		case model.ParamInput:
			ok = prompt.Input != ""
		case model.ParamExpectedOutput:
			ok = prompt.ExpectedOutput != ""
		case model.ParamContext:
			ok = prompt.Context != ""
		case model.ParamActualOutput:
			ok = true
		default:
			return false, param, fmt.Errorf("%w: %q", ErrInvalidMetricParameter, string(param))
		}

		if !ok {
			return false, param, nil
		}
	}
	return true, "", nil
}

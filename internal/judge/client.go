// Package judge talks to the external evaluation service that grades a
// model's output against a metric definition.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PromptPayload carries the prompt under evaluation. Output is always empty
// in requests; the judge fills it by calling the model itself.
type PromptPayload struct {
	Input          string `json:"input"`
	Output         string `json:"output"`
	ExpectedOutput string `json:"expected_output"`
	Context        string `json:"context"`
}

// ModelPayload identifies a model and its provider credentials
type ModelPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Key  string `json:"key"`
}

// MetricPayload carries the metric configuration, including the rating
// model used for scoring. Definition is the metric's JSON blob re-encoded
// as a string, which is what the service expects.
type MetricPayload struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Definition string       `json:"definition"`
	Param      []string     `json:"param"`
	Model      ModelPayload `json:"model"`
}

// Request is the evaluation request body
type Request struct {
	Prompt       PromptPayload `json:"prompt"`
	Model        ModelPayload  `json:"model"`
	Metric       MetricPayload `json:"metric"`
	SystemPrompt string        `json:"system_prompt"`
}

// Response is the judge's verdict. Fields the service omits keep their zero
// values rather than failing the evaluation.
type Response struct {
	ActualOutput string  `json:"actual_output"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"`
	Logs         string  `json:"logs"`
}

// Client calls the judge service over HTTP
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

// New creates a judge client with a fixed per-request timeout
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		log:     zap.L().With(zap.String("component", "judge")),
	}
}

// Evaluate sends one evaluation request. Any transport failure, timeout,
// non-2xx status or undecodable body is returned as an error; callers treat
// all of them as retryable.
func (c *Client) Evaluate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode judge request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("judge returned status %d: %s", resp.StatusCode, string(detail))
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Response{}, fmt.Errorf("failed to decode judge response: %w", err)
	}

	c.log.Debug("Judge evaluation completed",
		zap.String("metric", req.Metric.Name),
		zap.String("model", req.Model.Name),
		zap.Float64("score", result.Score),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

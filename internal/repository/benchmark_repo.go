package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taleval/taleval/internal/model"
)

// BenchmarkRepo loads benchmark aggregates and serializes state updates
type BenchmarkRepo struct {
	db *DB
}

// NewBenchmarkRepo creates a benchmark repository
func NewBenchmarkRepo(db *DB) *BenchmarkRepo {
	return &BenchmarkRepo{db: db}
}

// Find loads a benchmark with its test cases, prompts, metrics and models.
// Returns (nil, nil) when the benchmark does not exist.
func (r *BenchmarkRepo) Find(ctx context.Context, id int64) (*model.Benchmark, error) {
	b := &model.Benchmark{ID: id}

	var startedAt, finishedAt, errorsJSON sql.NullString
	var progress sql.NullInt64

	err := r.db.sql.QueryRowContext(ctx,
		`SELECT name, started_at, finished_at, progress, errors FROM benchmarks WHERE id = ?`, id,
	).Scan(&b.Name, &startedAt, &finishedAt, &progress, &errorsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state, err := scanState(startedAt, finishedAt, progress, errorsJSON)
	if err != nil {
		return nil, err
	}
	b.BenchmarkState = *state

	if b.TestCases, err = r.loadTestCases(ctx, id); err != nil {
		return nil, err
	}
	if b.Metrics, err = r.loadMetrics(ctx, id); err != nil {
		return nil, err
	}
	if b.Models, err = r.loadModels(ctx, id); err != nil {
		return nil, err
	}

	return b, nil
}

// Update applies mutate to the benchmark's mutable state inside a single
// read-modify-write transaction. Concurrent workers calling Update never
// lose each other's progress or error entries.
func (r *BenchmarkRepo) Update(ctx context.Context, id int64, mutate func(*model.BenchmarkState) error) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var startedAt, finishedAt, errorsJSON sql.NullString
		var progress sql.NullInt64

		err := tx.QueryRowContext(ctx,
			`SELECT started_at, finished_at, progress, errors FROM benchmarks WHERE id = ?`, id,
		).Scan(&startedAt, &finishedAt, &progress, &errorsJSON)
		if err == sql.ErrNoRows {
			return fmt.Errorf("benchmark %d not found", id)
		}
		if err != nil {
			return err
		}

		state, err := scanState(startedAt, finishedAt, progress, errorsJSON)
		if err != nil {
			return err
		}

		if err := mutate(state); err != nil {
			return err
		}

		var newStarted, newFinished, newErrors interface{}
		if state.StartedAt != nil {
			newStarted = state.StartedAt.Format(time.RFC3339)
		}
		if state.FinishedAt != nil {
			newFinished = state.FinishedAt.Format(time.RFC3339)
		}
		if state.Errors != nil {
			raw, err := json.Marshal(state.Errors)
			if err != nil {
				return err
			}
			newErrors = string(raw)
		}
		var newProgress interface{}
		if state.Progress != nil {
			newProgress = *state.Progress
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE benchmarks SET started_at = ?, finished_at = ?, progress = ?, errors = ? WHERE id = ?`,
			newStarted, newFinished, newProgress, newErrors, id)
		return err
	})
}

func scanState(startedAt, finishedAt sql.NullString, progress sql.NullInt64, errorsJSON sql.NullString) (*model.BenchmarkState, error) {
	state := &model.BenchmarkState{}

	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339, startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid started_at: %w", err)
		}
		state.StartedAt = &t
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid finished_at: %w", err)
		}
		state.FinishedAt = &t
	}
	if progress.Valid {
		p := int(progress.Int64)
		state.Progress = &p
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &state.Errors); err != nil {
			return nil, fmt.Errorf("invalid errors log: %w", err)
		}
	}

	return state, nil
}

func (r *BenchmarkRepo) loadTestCases(ctx context.Context, benchmarkID int64) ([]model.TestCase, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT tc.id, tc.name, COALESCE(tc.description, '')
		FROM test_cases tc
		JOIN benchmark_test_cases btc ON btc.test_case_id = tc.id
		WHERE btc.benchmark_id = ?
		ORDER BY tc.id
	`, benchmarkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Description); err != nil {
			return nil, err
		}
		testCases = append(testCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range testCases {
		prompts, err := r.loadPrompts(ctx, testCases[i].ID)
		if err != nil {
			return nil, err
		}
		testCases[i].Prompts = prompts
	}

	return testCases, nil
}

func (r *BenchmarkRepo) loadPrompts(ctx context.Context, testCaseID int64) ([]model.Prompt, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, test_case_id, input, COALESCE(expected_output, ''), COALESCE(context, '')
		FROM prompts WHERE test_case_id = ? ORDER BY id
	`, testCaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.TestCaseID, &p.Input, &p.ExpectedOutput, &p.Context); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (r *BenchmarkRepo) loadMetrics(ctx context.Context, benchmarkID int64) ([]model.Metric, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT m.id, m.name, m.type, COALESCE(m.definition, ''), m.threshold, m.param,
			rm.id, rm.name, rm.input_price, rm.output_price,
			rp.id, rp.name, rp.api_url, rp.api_key
		FROM metrics m
		JOIN benchmark_metrics bm ON bm.metric_id = m.id
		JOIN models rm ON rm.id = m.rating_model_id
		JOIN providers rp ON rp.id = rm.provider_id
		WHERE bm.benchmark_id = ?
		ORDER BY m.id
	`, benchmarkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		var m model.Metric
		var definition, params string
		err := rows.Scan(
			&m.ID, &m.Name, &m.Type, &definition, &m.Threshold, &params,
			&m.RatingModel.ID, &m.RatingModel.Name, &m.RatingModel.InputPrice, &m.RatingModel.OutputPrice,
			&m.RatingModel.Provider.ID, &m.RatingModel.Provider.Name,
			&m.RatingModel.Provider.APIURL, &m.RatingModel.Provider.APIKey,
		)
		if err != nil {
			return nil, err
		}

		if definition != "" {
			m.Definition = json.RawMessage(definition)
		}

		// params are stored comma-separated; validation happens at
		// evaluation time so a bad value surfaces as a config error
		for _, p := range strings.Split(params, ",") {
			if p = strings.TrimSpace(p); p != "" {
				m.Params = append(m.Params, model.MetricParam(p))
			}
		}

		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (r *BenchmarkRepo) loadModels(ctx context.Context, benchmarkID int64) ([]model.Model, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT m.id, m.name, m.input_price, m.output_price,
			p.id, p.name, p.api_url, p.api_key
		FROM models m
		JOIN benchmark_models bm ON bm.model_id = m.id
		JOIN providers p ON p.id = m.provider_id
		WHERE bm.benchmark_id = ?
		ORDER BY m.id
	`, benchmarkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []model.Model
	for rows.Next() {
		var m model.Model
		err := rows.Scan(
			&m.ID, &m.Name, &m.InputPrice, &m.OutputPrice,
			&m.Provider.ID, &m.Provider.Name, &m.Provider.APIURL, &m.Provider.APIKey,
		)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/taleval/taleval/internal/model"
)

// ResultRepo persists judge verdicts keyed by (prompt, metric, model, benchmark)
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a result repository
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// Find returns the result for the key, or (nil, nil) when none exists
func (r *ResultRepo) Find(ctx context.Context, key model.ResultKey) (*model.Result, error) {
	res := &model.Result{}
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT id, prompt_id, metric_id, model_id, benchmark_id, actual_output, score, reason, logs
		FROM results
		WHERE prompt_id = ? AND metric_id = ? AND model_id = ? AND benchmark_id = ?
	`, key.PromptID, key.MetricID, key.ModelID, key.BenchmarkID).Scan(
		&res.ID, &res.PromptID, &res.MetricID, &res.ModelID, &res.BenchmarkID,
		&res.ActualOutput, &res.Score, &res.Reason, &res.Logs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Upsert inserts the result or, when a row already exists for the key,
// replaces its verdict fields in place. Retries and task redelivery
// therefore never create duplicates.
func (r *ResultRepo) Upsert(ctx context.Context, res *model.Result) error {
	result, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO results (prompt_id, metric_id, model_id, benchmark_id, actual_output, score, reason, logs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(prompt_id, metric_id, model_id, benchmark_id)
		DO UPDATE SET actual_output = excluded.actual_output,
			score = excluded.score,
			reason = excluded.reason,
			logs = excluded.logs
	`, res.PromptID, res.MetricID, res.ModelID, res.BenchmarkID,
		res.ActualOutput, res.Score, res.Reason, res.Logs)
	if err != nil {
		return err
	}

	if res.ID == 0 {
		if id, err := result.LastInsertId(); err == nil {
			res.ID = id
		}
	}
	return nil
}

// Delete removes the result for the key, if any
func (r *ResultRepo) Delete(ctx context.Context, key model.ResultKey) error {
	_, err := r.db.sql.ExecContext(ctx, `
		DELETE FROM results
		WHERE prompt_id = ? AND metric_id = ? AND model_id = ? AND benchmark_id = ?
	`, key.PromptID, key.MetricID, key.ModelID, key.BenchmarkID)
	return err
}

// CountByBenchmark counts stored results for a benchmark
func (r *ResultRepo) CountByBenchmark(ctx context.Context, benchmarkID int64) (int, error) {
	var count int
	err := r.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE benchmark_id = ?`, benchmarkID,
	).Scan(&count)
	return count, err
}

// Search returns results matching the filter, joined with model, metric and
// prompt rows so the analytics pipeline can group by name and test case.
// Filter values are always bound as parameters, never concatenated into the
// query text.
func (r *ResultRepo) Search(ctx context.Context, filter model.ResultFilter) ([]model.Result, error) {
	query := `
		SELECT r.id, r.prompt_id, r.metric_id, r.model_id, r.benchmark_id,
			r.actual_output, r.score, r.reason, r.logs,
			m.name, mt.name, p.test_case_id
		FROM results r
		JOIN models m ON m.id = r.model_id
		JOIN metrics mt ON mt.id = r.metric_id
		JOIN prompts p ON p.id = r.prompt_id
	`

	var clauses []string
	var args []interface{}

	addIn := func(column string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
		clauses = append(clauses, column+" IN ("+placeholders+")")
		for _, id := range ids {
			args = append(args, id)
		}
	}

	addIn("r.prompt_id", filter.PromptIDs)
	addIn("r.metric_id", filter.MetricIDs)
	addIn("r.model_id", filter.ModelIDs)
	addIn("r.benchmark_id", filter.BenchmarkIDs)
	addIn("p.test_case_id", filter.TestCaseIDs)

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY r.id"

	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		err := rows.Scan(
			&res.ID, &res.PromptID, &res.MetricID, &res.ModelID, &res.BenchmarkID,
			&res.ActualOutput, &res.Score, &res.Reason, &res.Logs,
			&res.ModelName, &res.MetricName, &res.TestCaseID,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

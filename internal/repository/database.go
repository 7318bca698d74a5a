package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the sqlite handle shared by all repositories
type DB struct {
	sql *sql.DB
}

// Open opens the database and creates tables
func Open(dbPath string) (*DB, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	handle, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := handle.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	handle.SetMaxOpenConns(25)
	handle.SetMaxIdleConns(5)
	handle.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{sql: handle}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	zap.L().Info("Database initialized successfully",
		zap.String("path", dbPath))

	return db, nil
}

// SQL returns the underlying database handle
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.sql.Close()
}

// createTables creates all tables if they don't exist
func (d *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			api_url TEXT NOT NULL,
			api_key TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS models (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			provider_id INTEGER NOT NULL,
			input_price REAL NOT NULL DEFAULT 0,
			output_price REAL NOT NULL DEFAULT 0,
			FOREIGN KEY (provider_id) REFERENCES providers(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_models_provider_id ON models(provider_id)`,

		`CREATE TABLE IF NOT EXISTS test_cases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			test_case_id INTEGER NOT NULL,
			input TEXT NOT NULL,
			expected_output TEXT,
			context TEXT,
			FOREIGN KEY (test_case_id) REFERENCES test_cases(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_test_case_id ON prompts(test_case_id)`,

		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			definition TEXT,
			threshold REAL NOT NULL DEFAULT 0,
			param TEXT NOT NULL DEFAULT '',
			rating_model_id INTEGER NOT NULL,
			FOREIGN KEY (rating_model_id) REFERENCES models(id)
		)`,

		`CREATE TABLE IF NOT EXISTS benchmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT,
			progress INTEGER,
			errors TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS benchmark_test_cases (
			benchmark_id INTEGER NOT NULL,
			test_case_id INTEGER NOT NULL,
			PRIMARY KEY (benchmark_id, test_case_id),
			FOREIGN KEY (benchmark_id) REFERENCES benchmarks(id) ON DELETE CASCADE,
			FOREIGN KEY (test_case_id) REFERENCES test_cases(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS benchmark_metrics (
			benchmark_id INTEGER NOT NULL,
			metric_id INTEGER NOT NULL,
			PRIMARY KEY (benchmark_id, metric_id),
			FOREIGN KEY (benchmark_id) REFERENCES benchmarks(id) ON DELETE CASCADE,
			FOREIGN KEY (metric_id) REFERENCES metrics(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS benchmark_models (
			benchmark_id INTEGER NOT NULL,
			model_id INTEGER NOT NULL,
			PRIMARY KEY (benchmark_id, model_id),
			FOREIGN KEY (benchmark_id) REFERENCES benchmarks(id) ON DELETE CASCADE,
			FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id INTEGER NOT NULL,
			metric_id INTEGER NOT NULL,
			model_id INTEGER NOT NULL,
			benchmark_id INTEGER NOT NULL,
			actual_output TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			logs TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE,
			FOREIGN KEY (metric_id) REFERENCES metrics(id) ON DELETE CASCADE,
			FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE,
			FOREIGN KEY (benchmark_id) REFERENCES benchmarks(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_results_key
			ON results(prompt_id, metric_id, model_id, benchmark_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_benchmark_id ON results(benchmark_id)`,

		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	}

	for _, table := range tables {
		if _, err := d.sql.Exec(table); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", table, err)
		}
	}

	return nil
}

// WithTx executes a function within a transaction
func (d *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

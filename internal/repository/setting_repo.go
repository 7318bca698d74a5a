package repository

import (
	"context"
	"database/sql"
	"time"
)

// SystemPromptSetting names the template substituted into judge requests
const SystemPromptSetting = "system_prompt"

// SettingRepo stores named configuration values
type SettingRepo struct {
	db *DB
}

// NewSettingRepo creates a setting repository
func NewSettingRepo(db *DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// Value returns the setting value, or the empty string when unset
func (r *SettingRepo) Value(ctx context.Context, name string) (string, error) {
	var value string
	err := r.db.sql.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set creates or updates a setting
func (r *SettingRepo) Set(ctx context.Context, name, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, value, now)
	return err
}

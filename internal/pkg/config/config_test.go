package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.GetWebServiceAddr())
	assert.Equal(t, "data/taleval.db", cfg.Database.Path)
	assert.False(t, cfg.UseRedisQueue())
	assert.Equal(t, "http://judge_eval:5000/", cfg.JudgeService.URL)
	assert.Equal(t, 120*time.Second, cfg.JudgeTimeout())
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 2, cfg.Worker.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, "taleval:eval_queue", cfg.RedisService.QueueKey)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
web_service:
  host: "127.0.0.1"
  port: 9090
redis_service:
  host: "redis"
  port: 6380
  db: 2
judge_service:
  timeout_seconds: 30
worker:
  concurrency: 8
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.GetWebServiceAddr())
	assert.True(t, cfg.UseRedisQueue())
	assert.Equal(t, "redis:6380", cfg.GetRedisAddr())
	assert.Equal(t, 2, cfg.RedisService.DB)
	assert.Equal(t, 30*time.Second, cfg.JudgeTimeout())
	assert.Equal(t, 8, cfg.Worker.Concurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

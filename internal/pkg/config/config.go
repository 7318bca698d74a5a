package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	WebService   WebServiceConfig   `mapstructure:"web_service"`
	Database     DatabaseConfig     `mapstructure:"database"`
	RedisService RedisServiceConfig `mapstructure:"redis_service"`
	JudgeService JudgeServiceConfig `mapstructure:"judge_service"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Log          LogConfig          `mapstructure:"log"`
}

type WebServiceConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisServiceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	QueueKey string `mapstructure:"queue_key"`
}

type JudgeServiceConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type WorkerConfig struct {
	Concurrency  int `mapstructure:"concurrency"`
	MaxAttempts  int `mapstructure:"max_attempts"`
	RetryDelayMs int `mapstructure:"retry_delay_ms"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var cfg *Config

// Load loads the configuration from a YAML file
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("web_service.host", "0.0.0.0")
	v.SetDefault("web_service.port", 8080)
	v.SetDefault("database.path", "data/taleval.db")
	v.SetDefault("redis_service.queue_key", "taleval:eval_queue")
	v.SetDefault("judge_service.url", "http://judge_eval:5000/")
	v.SetDefault("judge_service.timeout_seconds", 120)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.max_attempts", 2)
	v.SetDefault("worker.retry_delay_ms", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Get returns the loaded configuration
func Get() *Config {
	return cfg
}

// GetWebServiceAddr returns the web service address
func (c *Config) GetWebServiceAddr() string {
	return fmt.Sprintf("%s:%d", c.WebService.Host, c.WebService.Port)
}

// GetRedisAddr returns the redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisService.Host, c.RedisService.Port)
}

// UseRedisQueue reports whether a redis-backed task queue is configured
func (c *Config) UseRedisQueue() bool {
	return c.RedisService.Host != ""
}

// JudgeTimeout returns the judge service timeout as a duration
func (c *Config) JudgeTimeout() time.Duration {
	return time.Duration(c.JudgeService.TimeoutSeconds) * time.Second
}

// RetryDelay returns the worker retry delay as a duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Worker.RetryDelayMs) * time.Millisecond
}

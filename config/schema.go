package config

import (
	"time"
)

// Config is the top-level configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend" json:"backend"`
	Auth    AuthConfig    `mapstructure:"auth" json:"auth"`
	Retry   RetryConfig   `mapstructure:"retry" json:"retry"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
}

// BackendConfig addresses the task-execution backend.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url" json:"base_url"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" json:"attempt_timeout"`
}

// AuthConfig controls credential storage and the refresh exchange.
type AuthConfig struct {
	RefreshPath   string        `mapstructure:"refresh_path" json:"refresh_path"`
	CredentialDB  string        `mapstructure:"credential_db" json:"credential_db"`
	RefreshWindow time.Duration `mapstructure:"refresh_window" json:"refresh_window"`
}

// RetryConfig bounds retries for idempotent calls and stream restarts.
type RetryConfig struct {
	MaxAttempts uint          `mapstructure:"max_attempts" json:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay" json:"delay"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	Development bool   `mapstructure:"development" json:"development"`
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	globalConfig *Config
	globalViper  *viper.Viper
)

// Load reads the configuration file. With an empty path the usual locations
// are searched; a missing file is not an error, defaults and environment
// variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := ResolveUserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// 1) ./.taskwire/config.json  2) ./config.json  3) ~/.taskwire/config.json
		v.AddConfigPath(filepath.Join(".", ".taskwire"))
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".taskwire"))
		v.SetConfigName("config")
		v.SetConfigType("json")
	}

	v.SetEnvPrefix("TASKWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	globalViper = v
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8080")
	// Use time.Duration defaults; plain integers would become nanoseconds when unmarshaled.
	v.SetDefault("backend.attempt_timeout", 30*time.Second)

	v.SetDefault("auth.refresh_path", "/auth/refresh")
	v.SetDefault("auth.credential_db", "~/.taskwire/credentials.db")
	v.SetDefault("auth.refresh_window", 30*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", 500*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Watch installs a callback invoked with the re-parsed configuration
// whenever the loaded file changes on disk.
func Watch(onChange func(*Config)) {
	v := globalViper
	if v == nil {
		return
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		globalConfig = &cfg
		onChange(&cfg)
	})
	v.WatchConfig()
}

// Save writes the configuration to path, as YAML for .yaml/.yml files and
// indented JSON otherwise.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Get returns the last loaded configuration.
func Get() *Config {
	return globalConfig
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	home, err := ResolveUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskwire", "config.json"), nil
}

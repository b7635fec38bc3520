// Package config loads process configuration for docwatch.
//
// Precedence, highest first: runtime overrides, DOCWATCH_* environment
// variables, an optional config file, built-in defaults. Watch manifests
// (pkg/manifest) carry per-run settings; this package carries the ambient
// ones shared by all commands.
package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Connection ConnectionConfig `mapstructure:"connection"`

	// StateDir is where job records persist between runs.
	StateDir string `mapstructure:"state_dir"`
}

// ServerConfig configures the observation HTTP server (docwatch serve).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// ConnectionConfig holds analysis-service connection defaults used when a
// command runs without a manifest.
type ConnectionConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	UserID   string        `mapstructure:"user_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

var (
	mu     sync.RWMutex
	loaded *Config
)

// Load resolves configuration. Optional overrides (nested maps keyed the
// same as the config file) take precedence over env vars and defaults.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	v.SetConfigName("docwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/docwatch")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set places overrides at viper's highest precedence level, above
	// env vars and the config file.
	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	mu.Lock()
	loaded = &cfg
	mu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded config, or nil if Load has
// not been called.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return loaded
}

// flatten converts a nested override map into dotted viper keys.
func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7171)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("connection.endpoint", "http://localhost:8000")
	v.SetDefault("connection.user_id", "")
	v.SetDefault("connection.timeout", 30*time.Second)

	v.SetDefault("state_dir", defaultStateDir())
}

// bindEnvAliases maps the short env var names commands document
// (DOCWATCH_ENDPOINT, DOCWATCH_USER_ID, DOCWATCH_PORT, DOCWATCH_LOG_LEVEL)
// onto their nested config keys.
func bindEnvAliases(v *viper.Viper) {
	aliases := map[string][]string{
		"connection.endpoint": {"DOCWATCH_ENDPOINT", "DOCWATCH_CONNECTION_ENDPOINT"},
		"connection.user_id":  {"DOCWATCH_USER_ID", "DOCWATCH_CONNECTION_USER_ID"},
		"connection.timeout":  {"DOCWATCH_TIMEOUT", "DOCWATCH_CONNECTION_TIMEOUT"},
		"server.host":         {"DOCWATCH_HOST", "DOCWATCH_SERVER_HOST"},
		"server.port":         {"DOCWATCH_PORT", "DOCWATCH_SERVER_PORT"},
		"logging.level":       {"DOCWATCH_LOG_LEVEL", "DOCWATCH_LOGGING_LEVEL"},
		"logging.format":      {"DOCWATCH_LOG_FORMAT", "DOCWATCH_LOGGING_FORMAT"},
		"state_dir":           {"DOCWATCH_STATE_DIR"},
	}
	for key, names := range aliases {
		args := append([]string{key}, names...)
		_ = v.BindEnv(args...)
	}
}

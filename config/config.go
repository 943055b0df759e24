// Package config holds the tunables of a bus and loads them from a TOML file
// and SOURCEBUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SOURCEBUS_"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Shards is the number of independently locked partitions of each registry. default: 8
	Shards int `toml:"shards" env:"SHARDS"`
	// FailureBuffer is the capacity of the fork failure queue. default: 16
	FailureBuffer int `toml:"failure_buffer" env:"FAILURE_BUFFER"`
	// StrictEvents injects ErrUnhandledEvent when emitting an event nobody listens to.
	StrictEvents bool `toml:"strict_events" env:"STRICT_EVENTS"`
	// EchoEmits re-emits every emission as the bus meta-event, for test observers.
	EchoEmits bool `toml:"echo_emits" env:"ECHO_EMITS"`
	// LogLevel is a zap level name. default: info
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
}

const (
	defaultShards        = 8
	defaultFailureBuffer = 16
	defaultLogLevel      = "info"
)

func Default() Config {
	return Config{
		Shards:        defaultShards,
		FailureBuffer: defaultFailureBuffer,
		LogLevel:      defaultLogLevel,
	}
}

// Normalize replaces unset or out-of-range values by their defaults.
func (c Config) Normalize() Config {
	if c.Shards <= 0 {
		c.Shards = defaultShards
	}
	if c.FailureBuffer <= 0 {
		c.FailureBuffer = defaultFailureBuffer
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	return c
}

func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Load starts from Default, applies the TOML file at path (skipped when path
// is empty; only keys present in the file override) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidConfig, path, undecoded)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

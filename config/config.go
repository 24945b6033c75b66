// Package config provides the crewevolve service configuration: defaults,
// YAML file loading, and environment-variable overrides.
//
// Precedence: defaults -> YAML file -> environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crewevolve/crewevolve/persistence"
)

// Config is the complete service configuration.
type Config struct {
	Log          LogConfig               `yaml:"log"`
	Server       ServerConfig            `yaml:"server"`
	Telemetry    TelemetryConfig         `yaml:"telemetry"`
	Store        persistence.StoreConfig `yaml:"store"`
	Evolution    EvolutionConfig         `yaml:"evolution"`
	Instructions InstructionsConfig      `yaml:"instructions"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// ServerConfig configures the monitoring HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// TelemetryConfig configures the OpenTelemetry SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// EvolutionConfig configures the evolution engine and monitor.
type EvolutionConfig struct {
	EvolutionsPerMinute float64       `yaml:"evolutions_per_minute"`
	Burst               int           `yaml:"burst"`
	MonitorInterval     time.Duration `yaml:"monitor_interval"`
}

// InstructionsConfig configures the instruction checker loop.
type InstructionsConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
}

// Default returns the complete default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr: ":9090",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "crewevolve",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Store: persistence.DefaultStoreConfig(),
		Evolution: EvolutionConfig{
			EvolutionsPerMinute: 6,
			Burst:               2,
			MonitorInterval:     time.Minute,
		},
		Instructions: InstructionsConfig{
			CheckInterval: 3 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected fields from CREWEVOLVE_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("CREWEVOLVE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CREWEVOLVE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("CREWEVOLVE_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CREWEVOLVE_STORE_TYPE"); v != "" {
		c.Store.Type = persistence.StoreType(v)
	}
	if v := os.Getenv("CREWEVOLVE_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("CREWEVOLVE_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("CREWEVOLVE_REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("CREWEVOLVE_TELEMETRY_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = enabled
		}
	}
	if v := os.Getenv("CREWEVOLVE_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate out of range: %v", c.Telemetry.SampleRate)
	}
	return nil
}

// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DemoConfig tunes the demo engine's timers and measurements.
type DemoConfig struct {
	PollIntervalMS          int  `yaml:"poll_interval_ms"`
	JitterMS                int  `yaml:"jitter_ms"`
	MinRestartMS            int  `yaml:"min_restart_ms"`
	TrapDelayMS             int  `yaml:"trap_delay_ms"`
	FollowerRebuildMS       int  `yaml:"follower_rebuild_ms"`
	SandboxIterations       int  `yaml:"sandbox_iterations"`
	PreferMeasuredColdStart bool `yaml:"prefer_measured_cold_start"`
	MaxAllocMB              int  `yaml:"max_alloc_mb"`
}

// OTAConfig holds the calculator's starting inputs.
type OTAConfig struct {
	FleetSize     int     `yaml:"fleet_size"`
	Network       string  `yaml:"network"`
	InterpretedMB float64 `yaml:"interpreted_mb"`
	WasmMB        float64 `yaml:"wasm_mb"`
}

// AdminConfig configures the HTTP admin server.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects the log level and an optional JSON log file.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Journal bool   `yaml:"journal"`
}

// GreptimeConfig is filled from the environment only.
type GreptimeConfig struct {
	Endpoint string `yaml:"-"`
	Database string `yaml:"-"`
}

// Config is the root console configuration.
type Config struct {
	SessionID string         `yaml:"session_id"`
	Demo      DemoConfig     `yaml:"demo"`
	OTA       OTAConfig      `yaml:"ota"`
	Admin     AdminConfig    `yaml:"admin"`
	Scenario  string         `yaml:"scenario"`
	Logging   LoggingConfig  `yaml:"logging"`
	Greptime  GreptimeConfig `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Demo: DemoConfig{
			PollIntervalMS:          500,
			JitterMS:                200,
			MinRestartMS:            500,
			TrapDelayMS:             100,
			FollowerRebuildMS:       50,
			SandboxIterations:       10,
			PreferMeasuredColdStart: true,
			MaxAllocMB:              64,
		},
		OTA: OTAConfig{
			FleetSize:     1000,
			Network:       "cellular",
			InterpretedMB: 50,
			WasmMB:        0.05,
		},
		Admin:   AdminConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config on top of the defaults, validating it against the
// CUE schema first when one is given.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from SESSION_ID, ADMIN_ADDR, GREPTIMEDB_ENDPOINT,
// GREPTIMEDB_DATABASE and POLL_INTERVAL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SESSION_ID"); v != "" {
		c.SessionID = v
	}
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		c.Admin.Addr = v
	}
	c.Greptime.Endpoint = os.Getenv("GREPTIMEDB_ENDPOINT")
	c.Greptime.Database = os.Getenv("GREPTIMEDB_DATABASE")
	if c.Greptime.Database == "" {
		c.Greptime.Database = "public"
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		c.Demo.PollIntervalMS = int(d / time.Millisecond)
	}
	return c.Validate()
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	d := c.Demo
	switch {
	case d.PollIntervalMS <= 0:
		return fmt.Errorf("demo.poll_interval_ms must be positive, got %d", d.PollIntervalMS)
	case d.JitterMS < 0:
		return fmt.Errorf("demo.jitter_ms must not be negative, got %d", d.JitterMS)
	case d.MinRestartMS < 0 || d.TrapDelayMS < 0 || d.FollowerRebuildMS < 0:
		return fmt.Errorf("demo delays must not be negative")
	case d.SandboxIterations <= 0:
		return fmt.Errorf("demo.sandbox_iterations must be positive, got %d", d.SandboxIterations)
	case c.OTA.FleetSize < 0:
		return fmt.Errorf("ota.fleet_size must not be negative, got %d", c.OTA.FleetSize)
	}
	return nil
}

// PollInterval is the runtime readiness poll period.
func (d DemoConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMS) * time.Millisecond
}

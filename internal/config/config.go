// Package config holds deployment settings: which backend stores the
// sheets, where the routing table comes from, and how the lock behaves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
)

// ValidBackends lists the supported storage backends.
var ValidBackends = []string{BackendMemory, BackendXLSX, BackendSQLite}

// Config is the full splice configuration.
type Config struct {
	Backend string `yaml:"backend"` // memory, xlsx, sqlite

	// Routing is a .cue or .yaml routing file. Empty uses the built-in
	// recruitment layout.
	Routing string `yaml:"routing"`

	AnalyticsSheet string `yaml:"analytics_sheet"`

	Workbook WorkbookConfig `yaml:"workbook"`
	Database DatabaseConfig `yaml:"database"`
	Lock     LockConfig     `yaml:"lock"`
	Intake   IntakeConfig   `yaml:"intake"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// WorkbookConfig configures the xlsx backend.
type WorkbookConfig struct {
	Path        string `yaml:"path"`
	CounterCell string `yaml:"counter_cell"`
}

// DatabaseConfig configures the sqlite backend and the submission log.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LockConfig configures lock acquisition.
type LockConfig struct {
	Name           string `yaml:"name"`
	AttemptTimeout string `yaml:"attempt_timeout"`
	Backoff        string `yaml:"backoff"`
	MaxBackoff     string `yaml:"max_backoff"`

	// Lease bounds how long a crashed process blocks others. Live holders
	// renew it, but it should still be well above the slowest splice.
	// Used by the xlsx and sqlite backends.
	Lease string `yaml:"lease"`
}

// IntakeConfig configures submission sources.
type IntakeConfig struct {
	// ResponsesSheet is read from .xlsx submission files.
	ResponsesSheet string `yaml:"responses_sheet"`

	// Workers bounds concurrent invocations in watch mode.
	Workers int `yaml:"workers"`
}

// MetricsConfig configures the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendXLSX,
		AnalyticsSheet: "ID Map & Analytics",
		Workbook: WorkbookConfig{
			Path:        "recruitment.xlsx",
			CounterCell: "N1",
		},
		Database: DatabaseConfig{
			Path: "splice.db",
		},
		Lock: LockConfig{
			Name:           "splice",
			AttemptTimeout: "20s",
			Backoff:        "100ms",
			MaxBackoff:     "5s",
			Lease:          "2m",
		},
		Intake: IntakeConfig{
			ResponsesSheet: "Form responses 1",
			Workers:        4,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPLICE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("SPLICE_WORKBOOK"); v != "" {
		c.Workbook.Path = v
	}
	if v := os.Getenv("SPLICE_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SPLICE_ROUTING"); v != "" {
		c.Routing = v
	}
}

// Validate checks values that would otherwise fail deep inside a splice.
func (c *Config) Validate() error {
	valid := false
	for _, b := range ValidBackends {
		if c.Backend == b {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Backend, ValidBackends)
	}
	if c.AnalyticsSheet == "" {
		return fmt.Errorf("analytics_sheet must not be empty")
	}
	if c.Lock.Name == "" {
		return fmt.Errorf("lock.name must not be empty")
	}
	for name, v := range map[string]string{
		"lock.attempt_timeout": c.Lock.AttemptTimeout,
		"lock.backoff":         c.Lock.Backoff,
		"lock.max_backoff":     c.Lock.MaxBackoff,
		"lock.lease":           c.Lock.Lease,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if c.Intake.Workers < 0 {
		return fmt.Errorf("intake.workers must not be negative")
	}
	return nil
}

// GetAttemptTimeout returns how long each lock attempt waits.
func (c *Config) GetAttemptTimeout() time.Duration {
	return duration(c.Lock.AttemptTimeout, 20*time.Second)
}

// GetBackoff returns the initial pause between lock attempts.
func (c *Config) GetBackoff() time.Duration {
	return duration(c.Lock.Backoff, 100*time.Millisecond)
}

// GetMaxBackoff returns the cap on the pause between lock attempts.
func (c *Config) GetMaxBackoff() time.Duration {
	return duration(c.Lock.MaxBackoff, 5*time.Second)
}

// GetLease returns the sqlite lock lease.
func (c *Config) GetLease() time.Duration {
	return duration(c.Lock.Lease, 2*time.Minute)
}

// GetWorkers returns the watch-mode concurrency limit, at least 1.
func (c *Config) GetWorkers() int {
	if c.Intake.Workers < 1 {
		return 1
	}
	return c.Intake.Workers
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

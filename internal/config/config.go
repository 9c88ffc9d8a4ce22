// ============================================================================
// labqueue configuration
// ============================================================================
//
// Package: internal/config
//
// Loaded from a YAML file (default configs/default.yaml). A missing file is
// not an error: every field has a default. LABQUEUE_* environment variables
// override the file:
//
//   LABQUEUE_STORAGE_BACKEND   storage.backend
//   LABQUEUE_STORAGE_PATH      storage.path
//   LABQUEUE_JOURNAL_PATH      journal.path
//   LABQUEUE_LOG_LEVEL         log.level
//   LABQUEUE_MACHINE_REMOVAL   model.machine_removal
//
// ============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/ChuLiYu/labqueue/internal/jobmanager"
	"gopkg.in/yaml.v3"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config represents the complete configuration
type Config struct {
	Storage struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		// Backups is how many previous JSON documents to keep.
		Backups int `yaml:"backups"`
	} `yaml:"storage"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
		Sync    bool   `yaml:"sync"`
	} `yaml:"journal"`

	Model struct {
		MachineRemoval string `yaml:"machine_removal"`
		HistoryLimit   int    `yaml:"history_limit"`
	} `yaml:"model"`

	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.Backend = BackendJSON
	cfg.Storage.Path = "data/addressbook.json"
	cfg.Storage.Backups = 3
	cfg.Journal.Enabled = true
	cfg.Journal.Path = "data/journal.log"
	cfg.Model.MachineRemoval = string(jobmanager.RemovalReject)
	cfg.Model.HistoryLimit = 100
	cfg.Metrics.Textfile = "data/labqueue.prom"
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"LABQUEUE_STORAGE_BACKEND", &c.Storage.Backend},
		{"LABQUEUE_STORAGE_PATH", &c.Storage.Path},
		{"LABQUEUE_JOURNAL_PATH", &c.Journal.Path},
		{"LABQUEUE_LOG_LEVEL", &c.Log.Level},
		{"LABQUEUE_MACHINE_REMOVAL", &c.Model.MachineRemoval},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid config: storage.backend %q should be %s or %s",
			c.Storage.Backend, BackendJSON, BackendSQLite)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("invalid config: storage.path is empty")
	}
	if c.Storage.Backups < 0 {
		return fmt.Errorf("invalid config: storage.backups must not be negative, got %d", c.Storage.Backups)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("invalid config: journal.path is empty but the journal is enabled")
	}
	if _, err := jobmanager.ParseRemovalPolicy(c.Model.MachineRemoval); err != nil {
		return fmt.Errorf("invalid config: model.machine_removal: %w", err)
	}
	if c.Model.HistoryLimit < 0 {
		return fmt.Errorf("invalid config: model.history_limit must not be negative, got %d", c.Model.HistoryLimit)
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return fmt.Errorf("invalid config: metrics.textfile is empty but metrics are enabled")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid config: log.format %q should be text or json", c.Log.Format)
	}
	return nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid config: log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// RemovalPolicy returns model.machine_removal as a policy. Validate has
// already checked it.
func (c *Config) RemovalPolicy() jobmanager.RemovalPolicy {
	p, _ := jobmanager.ParseRemovalPolicy(c.Model.MachineRemoval)
	return p
}

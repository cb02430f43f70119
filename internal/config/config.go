package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sessionrec/internal/namematch"
)

// CalendarConfig describes a single calendar source.
type CalendarConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Kind selects the source type: "ics" or "json".
	Kind string `yaml:"kind" json:"kind"`
	// Location is a file path or an http(s) URL for ICS sources, a
	// file path for JSON feeds.
	Location string `yaml:"location" json:"location"`
}

// StoreConfig selects where the workbook lives.
type StoreConfig struct {
	// Kind selects the backend: "csv" (directory of tab files) or
	// "sqlite" (single database file).
	Kind string `yaml:"kind" json:"kind"`
	// Path is the workbook directory (csv) or database file (sqlite).
	Path string `yaml:"path" json:"path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone the week window is computed in
	// (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Year is the ledger year to reconcile against. Zero means the
	// current year at run time.
	Year int `yaml:"year" json:"year"`

	// Schedule is a cron-style expression for periodic runs
	// (e.g. "0 6 * * 1" for Monday 06:00). Empty disables scheduling;
	// the run command then requires --once.
	Schedule string `yaml:"schedule" json:"schedule"`

	// SimilarityThreshold is the minimum name-similarity ratio for
	// treating two spellings as the same client. Range (0, 1].
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// Backup toggles creating a workbook backup before each run.
	Backup bool `yaml:"backup" json:"backup"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Store selects the workbook backend.
	Store StoreConfig `yaml:"store" json:"store"`

	// Calendars is the list of calendar sources to read events from.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:            "America/New_York",
		Year:                0,
		Schedule:            "",
		SimilarityThreshold: namematch.DefaultThreshold,
		Backup:              true,
		LogLevel:            "info",
		Store: StoreConfig{
			Kind: "csv",
			Path: "workbook",
		},
		Calendars: []CalendarConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = namematch.DefaultThreshold
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// ok
	default:
		c.LogLevel = "info"
	}
	switch c.Store.Kind {
	case "csv", "sqlite":
		// ok
	default:
		c.Store.Kind = "csv"
	}
	if c.Store.Path == "" {
		c.Store.Path = "workbook"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		if c.Calendars[i].Kind == "" {
			c.Calendars[i].Kind = "ics"
		}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".sessionrec-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

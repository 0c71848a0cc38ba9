package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Local"
	defaultPageSize    = 6
	defaultDataDir     = "~/.evently"
	defaultHorizonDays = 180
	defaultRefreshCron = "0 * * * *"
	defaultLogLevel    = "info"
)

// CatalogConfig selects the event catalog source. URL wins over Path; with
// neither set the built-in sample events are served.
type CatalogConfig struct {
	// Path is a YAML catalog file or a local .ics file.
	Path string `yaml:"path" json:"path" env:"EVENTLY_CATALOG_PATH"`
	// URL is an ICS feed fetched over HTTP(S).
	URL string `yaml:"url" json:"url" env:"EVENTLY_CATALOG_URL"`
	// DefaultYear completes short dates like "Sep 12". Zero means the
	// current year.
	DefaultYear int `yaml:"default_year" json:"default_year" env:"EVENTLY_CATALOG_YEAR"`
	// HorizonDays bounds recurring feed events.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" env:"EVENTLY_CATALOG_HORIZON_DAYS"`
	// RefreshCron is a 5-field cron schedule (e.g. "*/15 * * * *"). Set it
	// to "off" to disable periodic reloads.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"EVENTLY_CATALOG_REFRESH"`
}

// BasicAuthConfig protects the admin endpoints. PasswordHash is an argon2id
// hash as printed by `eventsctl hash-password`.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username" env:"EVENTLY_ADMIN_USER"`
	PasswordHash string `yaml:"password_hash" json:"-" env:"EVENTLY_ADMIN_PASSWORD_HASH"`
}

// Enabled reports whether credentials are configured.
func (b BasicAuthConfig) Enabled() bool {
	return b.Username != "" && b.PasswordHash != ""
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"EVENTLY_LISTEN"`

	// Timezone is the IANA timezone used for event dates and "today".
	Timezone string `yaml:"timezone" json:"timezone" env:"EVENTLY_TIMEZONE"`

	// PageSize is the number of events per page.
	PageSize int `yaml:"page_size" json:"page_size" env:"EVENTLY_PAGE_SIZE"`

	// ApplyDelayMS debounces search input in the browse session.
	ApplyDelayMS int `yaml:"apply_delay_ms" json:"apply_delay_ms" env:"EVENTLY_APPLY_DELAY_MS"`

	// DemoLatency makes account calls wait like the demo web client did.
	DemoLatency bool `yaml:"demo_latency" json:"demo_latency" env:"EVENTLY_DEMO_LATENCY"`

	// DataDir holds the local user store and the feed cache. "~" is
	// expanded.
	DataDir string `yaml:"data_dir" json:"data_dir" env:"EVENTLY_DATA_DIR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" env:"EVENTLY_LOG_LEVEL"`

	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// BasicAuth guards /api/admin/*; empty credentials leave it open.
	BasicAuth BasicAuthConfig `yaml:"basic_auth" json:"basic_auth"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		PageSize: defaultPageSize,
		DataDir:  defaultDataDir,
		LogLevel: defaultLogLevel,
		Catalog: CatalogConfig{
			HorizonDays: defaultHorizonDays,
			RefreshCron: defaultRefreshCron,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.ApplyDelayMS < 0 {
		c.ApplyDelayMS = 0
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Catalog.HorizonDays <= 0 {
		c.Catalog.HorizonDays = defaultHorizonDays
	}
	if c.Catalog.RefreshCron == "" {
		c.Catalog.RefreshCron = defaultRefreshCron
	}
	if c.Catalog.DefaultYear < 0 {
		c.Catalog.DefaultYear = 0
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ApplyDelay is ApplyDelayMS as a duration.
func (c *Config) ApplyDelay() time.Duration {
	return time.Duration(c.ApplyDelayMS) * time.Millisecond
}

// RefreshSchedule returns the cron spec, or "" when refresh is off.
func (c *Config) RefreshSchedule() string {
	if c.Catalog.RefreshCron == "off" {
		return ""
	}
	return c.Catalog.RefreshCron
}

// ResolveDataDir expands "~" in DataDir and makes it absolute.
func (c *Config) ResolveDataDir() (string, error) {
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return "", fmt.Errorf("data dir %q: %w", c.DataDir, err)
	}
	return filepath.Abs(dir)
}

// ApplyEnv overlays EVENTLY_* environment variables onto cfg. Variables that
// are not set leave the field alone.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	return nil
}

// Load loads configuration from the given YAML path and applies environment
// overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - If the file exists, it is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// First run: create default config file.
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
		return cfg, ApplyEnv(cfg)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.Normalize()
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".evently-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != defaultListen || cfg.PageSize != 6 || cfg.Catalog.RefreshCron != defaultRefreshCron {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
listen: ":9000"
page_size: 0
apply_delay_ms: -5
catalog:
  path: ./events.yaml
  default_year: 2024
basic_auth:
  username: admin
  password_hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.PageSize != defaultPageSize || cfg.ApplyDelayMS != 0 {
		t.Errorf("PageSize=%d ApplyDelayMS=%d", cfg.PageSize, cfg.ApplyDelayMS)
	}
	if cfg.Catalog.Path != "./events.yaml" || cfg.Catalog.DefaultYear != 2024 || cfg.Catalog.HorizonDays != defaultHorizonDays {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if !cfg.BasicAuth.Enabled() {
		t.Error("basic auth should be enabled")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EVENTLY_LISTEN", "0.0.0.0:7000")
	t.Setenv("EVENTLY_PAGE_SIZE", "12")
	t.Setenv("EVENTLY_CATALOG_URL", "https://example.com/campus.ics")
	t.Setenv("EVENTLY_CATALOG_REFRESH", "off")
	t.Setenv("EVENTLY_DEMO_LATENCY", "true")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9000\"\ntimezone: UTC\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != "0.0.0.0:7000" || cfg.PageSize != 12 || !cfg.DemoLatency {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("unset env var overrode Timezone: %q", cfg.Timezone)
	}
	if cfg.Catalog.URL != "https://example.com/campus.ics" || cfg.RefreshSchedule() != "" {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
}

func TestEnvRejectsBadValue(t *testing.T) {
	t.Setenv("EVENTLY_PAGE_SIZE", "many")
	if err := ApplyEnv(DefaultConfig()); err == nil {
		t.Fatal("expected error for non-numeric page size")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Berlin"
	cfg.Catalog.Path = "/srv/events.yaml"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Timezone != "Europe/Berlin" || got.Catalog.Path != "/srv/events.yaml" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyDelayMS = 250
	if cfg.ApplyDelay() != 250*time.Millisecond {
		t.Errorf("ApplyDelay() = %v", cfg.ApplyDelay())
	}

	cfg.Timezone = "UTC"
	if loc, err := cfg.Location(); err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v", loc, err)
	}
	cfg.Timezone = "Mars/Olympus"
	if _, err := cfg.Location(); err == nil {
		t.Error("expected error for unknown timezone")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.Reset()
	t.Cleanup(homedir.Reset)
	cfg.DataDir = "~/evently-data"
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join(home, "evently-data") {
		t.Errorf("ResolveDataDir() = %q", dir)
	}
}

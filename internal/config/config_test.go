package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Faucet.URL == "" {
		t.Error("default faucet url is empty")
	}
	if cfg.Faucet.RetryCount != 3 {
		t.Errorf("default retry count = %d, want 3", cfg.Faucet.RetryCount)
	}
	if cfg.Faucet.CooldownHours != 24 {
		t.Errorf("default cooldown hours = %d, want 24", cfg.Faucet.CooldownHours)
	}
	if !cfg.Faucet.ValidateAddresses {
		t.Error("address validation should default on")
	}
	if cfg.Browser.BaseURL != "http://local.adspower.net:50325" {
		t.Errorf("default browser base url = %q", cfg.Browser.BaseURL)
	}
	if cfg.Sheet.Columns.Profile != 1 || cfg.Sheet.Columns.Status != 6 {
		t.Errorf("default column mapping wrong: %+v", cfg.Sheet.Columns)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if cfg.Faucet.RetryCount != 3 {
		t.Errorf("expected defaults, got retry count %d", cfg.Faucet.RetryCount)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dripper.yaml")
	data := `
faucet:
  retry_count: 5
sheet:
  spreadsheet_id: abc123
  worksheet: Claims
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Faucet.RetryCount != 5 {
		t.Errorf("retry count = %d, want 5", cfg.Faucet.RetryCount)
	}
	if cfg.Sheet.SpreadsheetID != "abc123" {
		t.Errorf("spreadsheet id = %q, want abc123", cfg.Sheet.SpreadsheetID)
	}
	if cfg.Sheet.Worksheet != "Claims" {
		t.Errorf("worksheet = %q, want Claims", cfg.Sheet.Worksheet)
	}
	// Untouched fields keep defaults.
	if cfg.Faucet.CooldownHours != 24 {
		t.Errorf("cooldown hours = %d, want default 24", cfg.Faucet.CooldownHours)
	}
	if cfg.Sheet.Columns.Address != 2 {
		t.Errorf("address column = %d, want default 2", cfg.Sheet.Columns.Address)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DRIPPER_FAUCET_URL", "https://faucet.example.com")
	t.Setenv("DRIPPER_RETRY_COUNT", "7")
	t.Setenv("DRIPPER_SPREADSHEET_ID", "env-sheet")
	t.Setenv("DRIPPER_HEADLESS", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Faucet.URL != "https://faucet.example.com" {
		t.Errorf("faucet url = %q", cfg.Faucet.URL)
	}
	if cfg.Faucet.RetryCount != 7 {
		t.Errorf("retry count = %d, want 7", cfg.Faucet.RetryCount)
	}
	if cfg.Sheet.SpreadsheetID != "env-sheet" {
		t.Errorf("spreadsheet id = %q, want env-sheet", cfg.Sheet.SpreadsheetID)
	}
	if !cfg.Browser.Headless {
		t.Error("headless override not applied")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dripper.yaml")

	cfg := DefaultConfig()
	cfg.Faucet.RetryCount = 9
	cfg.Sheet.SpreadsheetID = "round-trip"
	cfg.Runner.ProfileDelayMs = 1234

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Faucet.RetryCount != 9 || got.Sheet.SpreadsheetID != "round-trip" || got.Runner.ProfileDelayMs != 1234 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Sheet.SpreadsheetID = "ok"
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retries", func(c *Config) { c.Faucet.RetryCount = 0 }},
		{"zero cooldown", func(c *Config) { c.Faucet.CooldownHours = 0 }},
		{"empty faucet url", func(c *Config) { c.Faucet.URL = "" }},
		{"empty browser url", func(c *Config) { c.Browser.BaseURL = "" }},
		{"empty spreadsheet", func(c *Config) { c.Sheet.SpreadsheetID = "" }},
		{"empty worksheet", func(c *Config) { c.Sheet.Worksheet = "" }},
		{"zero column", func(c *Config) { c.Sheet.Columns.Count = 0 }},
		{"duplicate columns", func(c *Config) { c.Sheet.Columns.Status = c.Sheet.Columns.Address }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.Sheet.SpreadsheetID = "ok"
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.PageLoadTimeout(); got != 30*time.Second {
		t.Errorf("PageLoadTimeout = %v, want 30s", got)
	}
	if got := cfg.CooldownWindow(); got != 24*time.Hour {
		t.Errorf("CooldownWindow = %v, want 24h", got)
	}

	cfg.Faucet.InterActionDelayMs = 500
	if got := cfg.InterActionDelay(); got != 500*time.Millisecond {
		t.Errorf("InterActionDelay = %v, want 500ms", got)
	}

	// Zero values fall back instead of disabling waits.
	cfg.Faucet.PageLoadTimeoutMs = 0
	if got := cfg.PageLoadTimeout(); got != 30*time.Second {
		t.Errorf("zero PageLoadTimeout = %v, want fallback 30s", got)
	}
	cfg.Runner.ProfileDelayMs = -1
	if got := cfg.ProfileDelay(); got != 2*time.Second {
		t.Errorf("negative ProfileDelay = %v, want fallback 2s", got)
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dripper.yaml")

	initial := DefaultConfig()
	initial.Sheet.SpreadsheetID = "watch-test"
	if err := initial.Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, zap.NewNop(), func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	updated := DefaultConfig()
	updated.Sheet.SpreadsheetID = "watch-test"
	updated.Faucet.RetryCount = 7
	if err := updated.Save(path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Faucet.RetryCount != 7 {
			t.Errorf("reloaded retry count = %d, want 7", cfg.Faucet.RetryCount)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("config reload never observed")
	}
}

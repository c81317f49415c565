package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all dripper configuration.
type Config struct {
	// Faucet claim protocol
	Faucet FaucetConfig `yaml:"faucet"`

	// Browser provisioning service
	Browser BrowserConfig `yaml:"browser"`

	// Work-queue spreadsheet
	Sheet SheetConfig `yaml:"sheet"`

	// Run loop behavior
	Runner RunnerConfig `yaml:"runner"`
}

// FaucetConfig configures the claim protocol.
type FaucetConfig struct {
	URL                string `yaml:"url"`
	PageLoadTimeoutMs  int    `yaml:"page_load_timeout_ms"`
	InterActionDelayMs int    `yaml:"inter_action_delay_ms"`
	RetryCount         int    `yaml:"retry_count"`
	CooldownHours      int    `yaml:"cooldown_hours"`
	ValidateAddresses  bool   `yaml:"validate_addresses"`
}

// BrowserConfig configures the provisioning service client.
type BrowserConfig struct {
	BaseURL          string `yaml:"base_url"`
	Headless         bool   `yaml:"headless"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
}

// SheetConfig configures the spreadsheet work queue.
type SheetConfig struct {
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	Worksheet       string        `yaml:"worksheet"`
	CredentialsFile string        `yaml:"credentials_file"`
	Columns         ColumnsConfig `yaml:"columns"`
}

// ColumnsConfig maps worksheet columns (1-based) to profile fields.
type ColumnsConfig struct {
	Profile   int `yaml:"profile"`
	Address   int `yaml:"address"`
	LastClaim int `yaml:"last_claim"`
	Eligible  int `yaml:"eligible"`
	Count     int `yaml:"count"`
	Status    int `yaml:"status"`
}

// RunnerConfig configures the orchestration loop.
type RunnerConfig struct {
	ProfileDelayMs int  `yaml:"profile_delay_ms"`
	RefreshLabels  bool `yaml:"refresh_labels"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Faucet: FaucetConfig{
			URL:                "https://www.alchemy.com/faucets/gensyn-testnet",
			PageLoadTimeoutMs:  30000,
			InterActionDelayMs: 2000,
			RetryCount:         3,
			CooldownHours:      24,
			ValidateAddresses:  true,
		},

		Browser: BrowserConfig{
			BaseURL:          "http://local.adspower.net:50325",
			Headless:         false,
			RequestTimeoutMs: 30000,
		},

		Sheet: SheetConfig{
			Worksheet:       "Sheet1",
			CredentialsFile: "credentials.json",
			Columns: ColumnsConfig{
				Profile:   1,
				Address:   2,
				LastClaim: 3,
				Eligible:  4,
				Count:     5,
				Status:    6,
			},
		},

		Runner: RunnerConfig{
			ProfileDelayMs: 2000,
			RefreshLabels:  true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a .env file in the working directory is merged into the
// environment before overrides are applied.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("DRIPPER_FAUCET_URL"); url != "" {
		c.Faucet.URL = url
	}
	if v := os.Getenv("DRIPPER_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Faucet.RetryCount = n
		}
	}
	if v := os.Getenv("DRIPPER_COOLDOWN_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Faucet.CooldownHours = n
		}
	}
	if url := os.Getenv("DRIPPER_BROWSER_URL"); url != "" {
		c.Browser.BaseURL = url
	}
	if v := os.Getenv("DRIPPER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if id := os.Getenv("DRIPPER_SPREADSHEET_ID"); id != "" {
		c.Sheet.SpreadsheetID = id
	}
	if ws := os.Getenv("DRIPPER_WORKSHEET"); ws != "" {
		c.Sheet.Worksheet = ws
	}
	if path := os.Getenv("DRIPPER_CREDENTIALS_FILE"); path != "" {
		c.Sheet.CredentialsFile = path
	}
}

// PageLoadTimeout returns the page readiness timeout.
func (c *Config) PageLoadTimeout() time.Duration {
	if c.Faucet.PageLoadTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Faucet.PageLoadTimeoutMs) * time.Millisecond
}

// InterActionDelay returns the settle delay between page actions.
func (c *Config) InterActionDelay() time.Duration {
	if c.Faucet.InterActionDelayMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Faucet.InterActionDelayMs) * time.Millisecond
}

// CooldownWindow returns the claim cooldown window.
func (c *Config) CooldownWindow() time.Duration {
	if c.Faucet.CooldownHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Faucet.CooldownHours) * time.Hour
}

// RequestTimeout returns the provisioning API request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.Browser.RequestTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.RequestTimeoutMs) * time.Millisecond
}

// ProfileDelay returns the spacing delay between profiles.
func (c *Config) ProfileDelay() time.Duration {
	if c.Runner.ProfileDelayMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Runner.ProfileDelayMs) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Faucet.URL == "" {
		return fmt.Errorf("faucet url not configured")
	}
	if c.Faucet.RetryCount < 1 {
		return fmt.Errorf("retry_count must be at least 1, got %d", c.Faucet.RetryCount)
	}
	if c.Faucet.CooldownHours < 1 {
		return fmt.Errorf("cooldown_hours must be at least 1, got %d", c.Faucet.CooldownHours)
	}
	if c.Browser.BaseURL == "" {
		return fmt.Errorf("browser base_url not configured")
	}
	if c.Sheet.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet_id not configured (set it in config or DRIPPER_SPREADSHEET_ID)")
	}
	if c.Sheet.Worksheet == "" {
		return fmt.Errorf("worksheet name not configured")
	}

	cols := map[string]int{
		"profile":    c.Sheet.Columns.Profile,
		"address":    c.Sheet.Columns.Address,
		"last_claim": c.Sheet.Columns.LastClaim,
		"eligible":   c.Sheet.Columns.Eligible,
		"count":      c.Sheet.Columns.Count,
		"status":     c.Sheet.Columns.Status,
	}
	seen := map[int]string{}
	for name, idx := range cols {
		if idx < 1 {
			return fmt.Errorf("column %s must be 1-based, got %d", name, idx)
		}
		if other, dup := seen[idx]; dup {
			return fmt.Errorf("columns %s and %s both mapped to %d", other, name, idx)
		}
		seen[idx] = name
	}

	return nil
}

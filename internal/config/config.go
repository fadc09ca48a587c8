// Package config defines process configuration and its loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and PLUSOLVER_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the relay listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// VendorBaseURL is the root of the quiz vendor API.
	VendorBaseURL string `koanf:"vendor_base_url"`

	// VendorTimeoutMS bounds a single vendor call; 0 leaves the transport default.
	VendorTimeoutMS int `koanf:"vendor_timeout_ms"`

	// SettleDelayMS is the pause after starting a quiz before items are fetched.
	SettleDelayMS int `koanf:"settle_delay_ms"`

	// CatalogSize is the number of catalog entries requested per session.
	CatalogSize int `koanf:"catalog_size"`

	// Locale picks the item name translation.
	Locale string `koanf:"locale"`

	// LanguageID is sent with every session create.
	LanguageID int `koanf:"language_id"`

	// WrongAnswer is submitted for items chosen to be answered incorrectly.
	WrongAnswer string `koanf:"wrong_answer"`

	// CacheDriver selects the answer cache backend: sqlite, postgres or memory.
	CacheDriver string `koanf:"cache_driver"`

	// CacheDSN is the data source for the answer cache.
	CacheDSN string `koanf:"cache_dsn"`

	// MaxAttempts caps a full-knowledge run.
	MaxAttempts int `koanf:"max_attempts"`

	// PollIntervalMS is how long the relay waits on an empty queue.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// QueueCapacity bounds each progress queue; 0 means unbounded.
	QueueCapacity int `koanf:"queue_capacity"`

	// MaxActiveRuns caps concurrent streaming runs.
	MaxActiveRuns int `koanf:"max_active_runs"`

	// MaxCatalogLimit caps GET /catalog?limit.
	MaxCatalogLimit int `koanf:"max_catalog_limit"`

	// CORSOrigins lists browser origins allowed to call the relay.
	CORSOrigins []string `koanf:"cors_origins"`

	// APIKeyHash is a bcrypt hash of the relay API key. Empty leaves the relay open.
	APIKeyHash string `koanf:"api_key_hash"`

	// SSO browser automation.
	SSOFederationURL string `koanf:"sso_federation_url"`
	SSOPortalURL     string `koanf:"sso_portal_url"`
	SSORankingURL    string `koanf:"sso_ranking_url"`
	SSOHeadless      bool   `koanf:"sso_headless"`
	SSOTimeoutMS     int    `koanf:"sso_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8000",
		VendorBaseURL:    "https://easy-plu.knowledge-hero.com/api/plu",
		SettleDelayMS:    1000,
		CatalogSize:      154,
		Locale:           "SI",
		LanguageID:       1,
		WrongAnswer:      "0000",
		CacheDriver:      DriverSQLite,
		CacheDSN:         defaultCacheDSN(),
		MaxAttempts:      50,
		PollIntervalMS:   100,
		MaxActiveRuns:    4,
		MaxCatalogLimit:  200,
		CORSOrigins:      []string{"http://localhost:3000"},
		SSOFederationURL: "https://federation.auth.lidl.com/nidp/app/login?sid=0&sid=0",
		SSOPortalURL:     "https://mylidl.lidl.com/sap/bc/ui5_ui5/ui2/ushell/shells/abap/Fiorilaunchpad.html?sov-ui-flp=true#Shell-home",
		SSORankingURL:    "https://easy-plu.knowledge-hero.com/user-ranking",
		SSOHeadless:      true,
		SSOTimeoutMS:     120_000,
	}
}

// Cache drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// VendorTimeout returns the per-call vendor timeout.
func (c *Config) VendorTimeout() time.Duration { return ms(c.VendorTimeoutMS) }

// SettleDelay returns the pause between starting a quiz and fetching items.
func (c *Config) SettleDelay() time.Duration { return ms(c.SettleDelayMS) }

// PollInterval returns the relay poll wait.
func (c *Config) PollInterval() time.Duration { return ms(c.PollIntervalMS) }

// SSOTimeout returns the overall budget for a browser login.
func (c *Config) SSOTimeout() time.Duration { return ms(c.SSOTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// defaultCacheDSN places the cache under the user's data directory,
// honouring XDG_DATA_HOME.
func defaultCacheDSN() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "plu_items.db"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "plusolver", "plu_items.db")
}

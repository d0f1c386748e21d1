package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

// Config holds runtime configuration for the overlay.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:"127.0.0.1:9090"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	OperatorToken     string        `envconfig:"OPERATOR_TOKEN"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	DiagnosticsChannel string        `envconfig:"OVERLAY_DIAGNOSTICS_CHANNEL" default:"overlay.diagnostics"`
	SnapshotCacheTTL   time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"5m"`

	ProfilePath   string `envconfig:"OVERLAY_PROFILE"`
	Locale        string `envconfig:"OVERLAY_LOCALE" default:"es-MX"`
	Currency      string `envconfig:"OVERLAY_CURRENCY" default:"MXN"`
	Timezone      string `envconfig:"OVERLAY_TIMEZONE"`
	InitialFilter string `envconfig:"OVERLAY_FILTER" default:"all"`
	StaticPage    string `envconfig:"OVERLAY_STATIC_PAGE"`

	RPCBaseURL    string        `envconfig:"RPC_BASE_URL"`
	RPCPath       string        `envconfig:"RPC_PATH" default:"/web/dataset/call_kw/account.move/search_read"`
	RPCLimit      int           `envconfig:"RPC_LIMIT" default:"400"`
	RPCMinRefresh time.Duration `envconfig:"RPC_MIN_REFRESH" default:"15s"`
	RPCTimeout    time.Duration `envconfig:"RPC_TIMEOUT" default:"20s"`

	BootstrapDebounce time.Duration `envconfig:"BOOTSTRAP_DEBOUNCE" default:"60ms"`
	BootstrapMaxWait  time.Duration `envconfig:"BOOTSTRAP_MAX_WAIT" default:"500ms"`
	DOMPollInterval   time.Duration `envconfig:"DOM_POLL_INTERVAL" default:"100ms"`

	BrowserControlURL string `envconfig:"BROWSER_CONTROL_URL"`
	BrowserBin        string `envconfig:"BROWSER_BIN"`
	BrowserHeadless   bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	BrowserPageMatch  string `envconfig:"BROWSER_PAGE_MATCH" default:"/odoo"`
	BrowserStartURL   string `envconfig:"BROWSER_START_URL"`
}

// ErrMissingRPCBaseURL is returned when a command needs the remote API.
var ErrMissingRPCBaseURL = errors.New("rpc base url must be provided")

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "pretty", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if c.RPCLimit <= 0 {
		return errors.New("rpc limit must be positive")
	}
	if c.RPCPath == "" {
		c.RPCPath = records.DefaultPath
	}
	if !kpi.Filter(c.InitialFilter).Valid() {
		return fmt.Errorf("unknown initial filter %q", c.InitialFilter)
	}
	if c.BootstrapMaxWait < c.BootstrapDebounce {
		return errors.New("bootstrap max wait must not be shorter than the debounce window")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequireRPC reports whether the remote API is configured.
func (c *Config) RequireRPC() error {
	if c == nil || c.RPCBaseURL == "" {
		return ErrMissingRPCBaseURL
	}
	return nil
}

// Location resolves the timezone used to compute "today".
func (c *Config) Location() (*time.Location, error) {
	if c == nil || c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsProduction returns true when the overlay runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Fields carry koanf tags matching the flat YAML and env keys.
// - New() returns the defaults Load layers file and env values onto.
package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/okian/icexg/internal/domain/scoring"
)

// Table store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// FeedBaseURL is the public play-by-play API root.
	FeedBaseURL string `koanf:"feed_base_url"`

	// FeedRatePerSec caps outbound feed requests.
	FeedRatePerSec float64 `koanf:"feed_rate_per_sec"`

	// GatewayURL is the model serving root. Empty scores locally.
	GatewayURL string `koanf:"gateway_url"`

	// HTTPTimeoutMS bounds every outbound request.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// Workspace, Model and Version select the initial model.
	Workspace string `koanf:"workspace"`
	Model     string `koanf:"model"`
	Version   string `koanf:"version"`

	// AutoPollIntervalMS enables auto polling of tracked games when > 0.
	AutoPollIntervalMS int `koanf:"auto_poll_interval_ms"`

	// WorkerCount sets the number of auto poll workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the auto poll queue.
	QueueSize int `koanf:"queue_size"`

	// LedgerCapacity presizes each session ledger.
	LedgerCapacity int `koanf:"ledger_capacity"`

	// TableStore is memory or sqlite.
	TableStore string `koanf:"table_store"`

	// SQLitePath is the database file used when TableStore is sqlite.
	SQLitePath string `koanf:"sqlite_path"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		FeedBaseURL:    "https://api-web.nhle.com/v1",
		FeedRatePerSec: 5,
		GatewayURL:     "http://127.0.0.1:5000",
		HTTPTimeoutMS:  10_000,
		Workspace:      "ift6758",
		Model:          scoring.ModelDistance,
		Version:        "latest",
		WorkerCount:    runtime.NumCPU(),
		QueueSize:      64,
		LedgerCapacity: 512,
		TableStore:     StoreMemory,
		SQLitePath:     "icexg.db",
	}
}

// HTTPTimeout returns HTTPTimeoutMS as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// AutoPollInterval returns AutoPollIntervalMS as a duration; zero disables.
func (c *Config) AutoPollInterval() time.Duration {
	return time.Duration(c.AutoPollIntervalMS) * time.Millisecond
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if err := validURL(c.FeedBaseURL, true); err != nil {
		return fmt.Errorf("%w: feed_base_url: %w", ErrInvalidConfig, err)
	}
	if err := validURL(c.GatewayURL, false); err != nil {
		return fmt.Errorf("%w: gateway_url: %w", ErrInvalidConfig, err)
	}
	if c.FeedRatePerSec <= 0 {
		return fmt.Errorf("%w: feed_rate_per_sec must be positive", ErrInvalidConfig)
	}
	if c.HTTPTimeoutMS <= 0 {
		return fmt.Errorf("%w: http_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.AutoPollIntervalMS < 0 {
		return fmt.Errorf("%w: auto_poll_interval_ms must not be negative", ErrInvalidConfig)
	}
	if err := scoring.Validate(c.Model); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalidConfig, err)
	}
	switch c.TableStore {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown table_store %q", ErrInvalidConfig, c.TableStore)
	}
	return nil
}

func validURL(raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("must not be empty")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Package config loads and exposes application configuration (TOML).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath   = "chorus.toml"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultRecentWindow = 12
	DefaultMaxRecent    = 6
	DefaultTrackerTTL   = "300s"
	DefaultMaxWait      = "60s"
	DefaultPollInterval = "500ms"
	DefaultHistoryPath  = "chorus.db"
)

// Providers accepted in a backend block. The set is closed on purpose:
// backends are resolved at startup, not dispatched by runtime strings.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig       `toml:"log"`
	Selector SelectorConfig  `toml:"selector"`
	Tracker  TrackerConfig   `toml:"tracker"`
	Wait     WaitConfig      `toml:"wait"`
	History  HistoryConfig   `toml:"history"`
	Backends []BackendConfig `toml:"backends"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SelectorConfig tunes the context selection policy.
type SelectorConfig struct {
	RecentWindow   int      `toml:"recent_window"`
	MaxRecent      int      `toml:"max_recent"`
	ImportanceCues []string `toml:"importance_cues"`
}

// TrackerConfig holds the completed-record retention period.
type TrackerConfig struct {
	TTL duration `toml:"ttl"`
}

// WaitConfig holds the blocking-wait parameters.
type WaitConfig struct {
	MaxWait      duration `toml:"max_wait"`
	PollInterval duration `toml:"poll_interval"`
}

// HistoryConfig selects the history store: "memory" or "sqlite" with a path.
type HistoryConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// BackendConfig declares one provider backend. Temperature is a pointer so an
// explicit 0.0 in TOML is distinguishable from an absent field.
type BackendConfig struct {
	Key             string   `toml:"key"`
	Provider        string   `toml:"provider"`
	Model           string   `toml:"model"`
	DisplayName     string   `toml:"display_name"`
	Instruction     string   `toml:"instruction"`
	Temperature     *float64 `toml:"temperature"`
	MaxTokens       int64    `toml:"max_tokens"`
	InputPricePerK  float64  `toml:"input_price_per_1k"`
	OutputPricePerK float64  `toml:"output_price_per_1k"`
}

// duration wraps time.Duration for TOML decoding of strings like "300s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load reads the TOML file at path, applies defaults and validates the
// result. A missing file yields defaults with no backends.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Selector.RecentWindow == 0 {
		c.Selector.RecentWindow = DefaultRecentWindow
	}
	if c.Selector.MaxRecent == 0 {
		c.Selector.MaxRecent = DefaultMaxRecent
	}
	if c.Tracker.TTL.Duration == 0 {
		c.Tracker.TTL.Duration = mustDuration(DefaultTrackerTTL)
	}
	if c.Wait.MaxWait.Duration == 0 {
		c.Wait.MaxWait.Duration = mustDuration(DefaultMaxWait)
	}
	if c.Wait.PollInterval.Duration == 0 {
		c.Wait.PollInterval.Duration = mustDuration(DefaultPollInterval)
	}
	if c.History.Driver == "" {
		c.History.Driver = "memory"
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.Key == "" {
			b.Key = b.Provider
		}
		if b.DisplayName == "" {
			b.DisplayName = b.Key
		}
		if b.Temperature == nil {
			t := 0.7
			b.Temperature = &t
		}
		if b.MaxTokens == 0 {
			b.MaxTokens = 3000
		}
	}
}

// Validate checks the config for unknown providers and duplicate keys.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		switch b.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderMock:
		default:
			return fmt.Errorf("unknown provider %q for backend %q", b.Provider, b.Key)
		}
		if seen[b.Key] {
			return fmt.Errorf("duplicate backend key %q", b.Key)
		}
		seen[b.Key] = true
	}
	switch c.History.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown history driver %q", c.History.Driver)
	}
	return nil
}

// TTL returns the tracker retention period.
func (c Config) TTL() time.Duration { return c.Tracker.TTL.Duration }

// MaxWait returns the blocking-wait bound.
func (c Config) MaxWait() time.Duration { return c.Wait.MaxWait.Duration }

// PollInterval returns the blocking-wait poll cadence.
func (c Config) PollInterval() time.Duration { return c.Wait.PollInterval.Duration }

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Package config loads and validates the dashboard configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"salarydash/internal/engine"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the dashboard configuration. Values come from defaults, an
// optional JSON file, DASHBOARD_* environment variables and CLI flags, in
// that order of increasing precedence.
type Config struct {
	Port int `json:"port,omitempty" validate:"min=1,max=65535"`

	// DataSource is the URL or local path of the salary CSV.
	DataSource string `json:"data_source,omitempty" validate:"required"`

	// FocusRole is the role the country map is restricted to.
	FocusRole     string `json:"focus_role,omitempty" validate:"required"`
	TopN          int    `json:"top_n,omitempty" validate:"min=1,max=100"`
	HistogramBins int    `json:"histogram_bins,omitempty" validate:"min=1,max=500"`

	FetchTimeoutSec int `json:"fetch_timeout_sec,omitempty" validate:"gte=0"`

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `json:"rate_limit,omitempty" validate:"gte=0"`

	LogLevel    string   `json:"log_level,omitempty" validate:"oneof=debug info warn error off"`
	CORSOrigins []string `json:"cors_origins,omitempty" validate:"dive,required"`
}

// FetchTimeout returns the remote download timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// Params returns the aggregation settings.
func (c Config) Params() engine.Params {
	return engine.Params{TopN: c.TopN, HistogramBins: c.HistogramBins, FocusRole: c.FocusRole}
}

// Default returns the reference deployment settings.
func Default() Config {
	return Config{
		Port:            8080,
		DataSource:      engine.DefaultSource,
		FocusRole:       engine.DefaultFocusRole,
		TopN:            engine.DefaultTopN,
		HistogramBins:   engine.DefaultHistogramBins,
		FetchTimeoutSec: int(engine.DefaultFetchTimeout / time.Second),
		RateLimit:       20,
		LogLevel:        "info",
		CORSOrigins:     []string{"*"},
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration: defaults, then the file at path
// (if any), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MergeWithDefaults returns a copy of c with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.DataSource == "" {
		result.DataSource = defaults.DataSource
	}
	if result.FocusRole == "" {
		result.FocusRole = defaults.FocusRole
	}
	if result.TopN == 0 {
		result.TopN = defaults.TopN
	}
	if result.HistogramBins == 0 {
		result.HistogramBins = defaults.HistogramBins
	}
	if result.FetchTimeoutSec == 0 {
		result.FetchTimeoutSec = defaults.FetchTimeoutSec
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = defaults.CORSOrigins
	}

	// A zero rate limit in a file reads as unset; disable limiting through
	// DASHBOARD_RATE_LIMIT=0 or --rate-limit=0 instead.
	if result.RateLimit == 0 {
		result.RateLimit = defaults.RateLimit
	}

	return result
}

// ApplyEnv overrides fields from DASHBOARD_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DASHBOARD_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: DASHBOARD_PORT: %w", err)
		}
		c.Port = n
	}
	if v, ok := lookup("DASHBOARD_DATA_SOURCE"); ok {
		c.DataSource = v
	}
	if v, ok := lookup("DASHBOARD_FOCUS_ROLE"); ok {
		c.FocusRole = v
	}
	if v, ok := lookup("DASHBOARD_TOP_N"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: DASHBOARD_TOP_N: %w", err)
		}
		c.TopN = n
	}
	if v, ok := lookup("DASHBOARD_HISTOGRAM_BINS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: DASHBOARD_HISTOGRAM_BINS: %w", err)
		}
		c.HistogramBins = n
	}
	if v, ok := lookup("DASHBOARD_FETCH_TIMEOUT_SEC"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: DASHBOARD_FETCH_TIMEOUT_SEC: %w", err)
		}
		c.FetchTimeoutSec = n
	}
	if v, ok := lookup("DASHBOARD_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config error: DASHBOARD_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup("DASHBOARD_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup("DASHBOARD_CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

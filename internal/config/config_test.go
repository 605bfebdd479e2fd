package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	assert.Equal(t, 10, p.TopN)
	assert.Equal(t, 30, p.HistogramBins)
	assert.Equal(t, "Data Scientist", p.FocusRole)
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"port": 9090,
		"data_source": "/data/salaries.csv",
		"focus_role": "Data Engineer",
		"top_n": 5,
		"log_level": "debug"
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/data/salaries.csv", cfg.DataSource)
	assert.Equal(t, "Data Engineer", cfg.FocusRole)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{FocusRole: "ML Engineer", TopN: 3}

	merged := partial.MergeWithDefaults(Default())

	assert.Equal(t, "ML Engineer", merged.FocusRole)
	assert.Equal(t, 3, merged.TopN)
	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, 30, merged.HistogramBins)
	assert.Equal(t, float64(20), merged.RateLimit)
	assert.Equal(t, []string{"*"}, merged.CORSOrigins)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DASHBOARD_PORT":         "7000",
		"DASHBOARD_FOCUS_ROLE":   "Data Analyst",
		"DASHBOARD_RATE_LIMIT":   "0",
		"DASHBOARD_LOG_LEVEL":    "WARN",
		"DASHBOARD_CORS_ORIGINS": "https://a.example, https://b.example,",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "Data Analyst", cfg.FocusRole)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "DASHBOARD_TOP_N" {
			return "ten", true
		}
		return "", false
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DASHBOARD_TOP_N")
}

func TestLoad_FileThenEnv(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"port": 9090, "top_n": 7}`), 0644))
	t.Setenv("DASHBOARD_PORT", "9191")

	cfg, err := Load(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 7, cfg.TopN)
	assert.Equal(t, "Data Scientist", cfg.FocusRole)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port out of range", mutate: func(c *Config) { c.Port = 70000 }},
		{name: "no data source", mutate: func(c *Config) { c.DataSource = "" }},
		{name: "no focus role", mutate: func(c *Config) { c.FocusRole = "" }},
		{name: "zero top n", mutate: func(c *Config) { c.TopN = 0 }},
		{name: "too many bins", mutate: func(c *Config) { c.HistogramBins = 1000 }},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimit = -1 }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "verbose" }},
		{name: "blank cors origin", mutate: func(c *Config) { c.CORSOrigins = []string{""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 0.4, cfg.HeatmapOptions().Alpha)
	assert.Equal(t, 2, cfg.FeatureParams().Grid)
	assert.Equal(t, "Original", cfg.Classifier.SyntheticLabel)
	assert.Equal(t, 85.5, cfg.Classifier.SyntheticConfidence)
	assert.Zero(t, cfg.Reference.ReloadInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FAKEDETECT_PORT", "9090")
	t.Setenv("FAKEDETECT_LOG_LEVEL", "debug")
	t.Setenv("FAKEDETECT_CLASSIFIER_TIMEOUT", "5s")
	t.Setenv("FAKEDETECT_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 5*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
server:
  host: "127.0.0.1"
  port: 8888
  rate_limit: 0
classifier:
  url: "http://classifier:5000"
  synthetic: false
  timeout: 2s
heatmap:
  alpha: 0.6
  colormap: hot
features:
  grid: 3
reference:
  default_category: cosmetics
  reload_interval: 30s
log:
  level: warn
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.Server.RateLimit)
	assert.Equal(t, "http://classifier:5000", cfg.Classifier.URL)
	assert.False(t, cfg.Classifier.Synthetic)
	assert.Equal(t, 2*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, "hot", cfg.HeatmapOptions().Colormap)
	assert.Equal(t, 3, cfg.FeatureParams().Grid)
	assert.Equal(t, "cosmetics", cfg.Reference.DefaultCategory)
	assert.Equal(t, 30*time.Second, cfg.Reference.ReloadInterval)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep defaults
	assert.Equal(t, 5, cfg.Reasons.Max)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "FAKEDETECT_HEATMAP_COLORMAP"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(key+"=bone\n"), 0o644))

	cfg, err := Load("", envPath, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "bone", cfg.Heatmap.Colormap)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port must be between"},
		{"no upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max_upload_mb"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"burst", func(c *Config) { c.Server.RateBurst = 0 }, "rate_burst"},
		{"remote without url", func(c *Config) { c.Classifier.Synthetic = false }, "classifier url"},
		{"alpha", func(c *Config) { c.Heatmap.Alpha = 1.5 }, "heatmap"},
		{"colormap", func(c *Config) { c.Heatmap.Colormap = "plasma-ish" }, "heatmap"},
		{"grid", func(c *Config) { c.Features.Grid = 0 }, "features"},
		{"reasons min", func(c *Config) { c.Reasons.Min = 0 }, "reasons min"},
		{"reasons min below three", func(c *Config) { c.Reasons.Min, c.Reasons.Max = 1, 2 }, "reasons min"},
		{"reasons max", func(c *Config) { c.Reasons.Max = 2 }, "reasons max"},
		{"reasons max above five", func(c *Config) { c.Reasons.Max = 6 }, "reasons max"},
		{"scale", func(c *Config) { c.Reference.Scale = 0 }, "reference scale"},
		{"reload", func(c *Config) { c.Reference.ReloadInterval = -time.Second }, "reload_interval"},
		{"synthetic confidence", func(c *Config) { c.Classifier.SyntheticConfidence = 101 }, "synthetic_confidence"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"fakedetect/internal/features"
	"fakedetect/internal/gradcam"
	"fakedetect/internal/heatmap"
	"fakedetect/internal/reasons"
	"fakedetect/internal/reference"
)

// Config holds all service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Heatmap    HeatmapConfig    `yaml:"heatmap"`
	Features   FeaturesConfig   `yaml:"features"`
	Reasons    ReasonsConfig    `yaml:"reasons"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Log        LogConfig        `yaml:"log"`

	// Concurrent explanations in batch mode
	Workers int `envconfig:"FAKEDETECT_WORKERS" yaml:"workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"FAKEDETECT_HOST" yaml:"host"`
	Port            int           `envconfig:"FAKEDETECT_PORT" yaml:"port"`
	MaxUploadMB     int           `envconfig:"FAKEDETECT_MAX_UPLOAD_MB" yaml:"max_upload_mb"`
	RateLimit       float64       `envconfig:"FAKEDETECT_RATE_LIMIT" yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `envconfig:"FAKEDETECT_RATE_BURST" yaml:"rate_burst"`
	CORSOrigins     []string      `envconfig:"FAKEDETECT_CORS_ORIGINS" yaml:"cors_origins"`
	ReadTimeout     time.Duration `envconfig:"FAKEDETECT_READ_TIMEOUT" yaml:"read_timeout"`
	WriteTimeout    time.Duration `envconfig:"FAKEDETECT_WRITE_TIMEOUT" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `envconfig:"FAKEDETECT_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// ClassifierConfig selects the attribution source.
type ClassifierConfig struct {
	URL       string        `envconfig:"FAKEDETECT_CLASSIFIER_URL" yaml:"url"`
	Timeout   time.Duration `envconfig:"FAKEDETECT_CLASSIFIER_TIMEOUT" yaml:"timeout"`
	Synthetic bool          `envconfig:"FAKEDETECT_SYNTHETIC" yaml:"synthetic"`

	// Fixed verdict reported by the synthetic source
	SyntheticLabel      string  `envconfig:"FAKEDETECT_SYNTHETIC_LABEL" yaml:"synthetic_label"`
	SyntheticConfidence float64 `envconfig:"FAKEDETECT_SYNTHETIC_CONFIDENCE" yaml:"synthetic_confidence"`
}

// HeatmapConfig holds overlay rendering settings.
type HeatmapConfig struct {
	Alpha    float64 `envconfig:"FAKEDETECT_HEATMAP_ALPHA" yaml:"alpha"`
	Colormap string  `envconfig:"FAKEDETECT_HEATMAP_COLORMAP" yaml:"colormap"`
}

// FeaturesConfig holds feature extraction settings.
type FeaturesConfig struct {
	Grid             int     `envconfig:"FAKEDETECT_FEATURE_GRID" yaml:"grid"`
	ClarityScale     float64 `envconfig:"FAKEDETECT_CLARITY_SCALE" yaml:"clarity_scale"`
	TextureScale     float64 `envconfig:"FAKEDETECT_TEXTURE_SCALE" yaml:"texture_scale"`
	SharpnessScale   float64 `envconfig:"FAKEDETECT_SHARPNESS_SCALE" yaml:"sharpness_scale"`
	ConsistencyScale float64 `envconfig:"FAKEDETECT_CONSISTENCY_SCALE" yaml:"consistency_scale"`
	DeviationScale   float64 `envconfig:"FAKEDETECT_DEVIATION_SCALE" yaml:"deviation_scale"`
	OCR              bool    `envconfig:"FAKEDETECT_OCR" yaml:"ocr"`
	OCRLanguage      string  `envconfig:"FAKEDETECT_OCR_LANGUAGE" yaml:"ocr_language"`
}

// ReasonsConfig bounds the reason list length.
type ReasonsConfig struct {
	Min int `envconfig:"FAKEDETECT_MIN_REASONS" yaml:"min"`
	Max int `envconfig:"FAKEDETECT_MAX_REASONS" yaml:"max"`
}

// ReferenceConfig locates the reference profiles. Redis takes precedence
// over the profiles file; with neither, the built-in general profile is used.
type ReferenceConfig struct {
	ProfilesFile    string        `envconfig:"FAKEDETECT_PROFILES_FILE" yaml:"profiles_file"`
	ReloadInterval  time.Duration `envconfig:"FAKEDETECT_PROFILES_RELOAD" yaml:"reload_interval"` // 0 disables file polling
	RedisURL        string        `envconfig:"FAKEDETECT_REDIS_URL" yaml:"redis_url"`
	RedisPrefix     string        `envconfig:"FAKEDETECT_REDIS_PREFIX" yaml:"redis_prefix"`
	DefaultCategory string        `envconfig:"FAKEDETECT_DEFAULT_CATEGORY" yaml:"default_category"`
	Scale           float64       `envconfig:"FAKEDETECT_SIMILARITY_SCALE" yaml:"scale"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"FAKEDETECT_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"FAKEDETECT_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from defaults, an optional YAML file, optional
// .env files and the environment, in increasing priority.
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// .env values never override variables already set
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	p := features.DefaultParams()
	h := heatmap.DefaultOptions()

	cfg.Server = ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		MaxUploadMB:     10,
		RateLimit:       10,
		RateBurst:       20,
		CORSOrigins:     []string{"*"},
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	synthetic := gradcam.NewSyntheticSource().Prediction
	cfg.Classifier = ClassifierConfig{
		Timeout:             30 * time.Second,
		Synthetic:           true,
		SyntheticLabel:      synthetic.Label,
		SyntheticConfidence: synthetic.Confidence,
	}

	cfg.Heatmap = HeatmapConfig{
		Alpha:    h.Alpha,
		Colormap: h.Colormap,
	}

	cfg.Features = FeaturesConfig{
		Grid:             p.Grid,
		ClarityScale:     p.ClarityScale,
		TextureScale:     p.TextureScale,
		SharpnessScale:   p.SharpnessScale,
		ConsistencyScale: p.ConsistencyScale,
		DeviationScale:   p.DeviationScale,
		OCRLanguage:      "eng",
	}

	cfg.Reasons = ReasonsConfig{
		Min: reasons.MinReasons,
		Max: reasons.MaxReasons,
	}

	cfg.Reference = ReferenceConfig{
		RedisPrefix:     "fakedetect:",
		DefaultCategory: reference.DefaultCategory,
		Scale:           1.0,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Workers = 4
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, "max_upload_mb must be positive")
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}

	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, "rate_burst must be positive when rate limiting is enabled")
	}

	// Classifier validation
	if !c.Classifier.Synthetic && c.Classifier.URL == "" {
		errs = append(errs, "classifier url is required unless synthetic mode is enabled")
	}

	if c.Classifier.Timeout <= 0 {
		errs = append(errs, "classifier timeout must be positive")
	}

	if c.Classifier.SyntheticConfidence < 0 || c.Classifier.SyntheticConfidence > 100 {
		errs = append(errs, "synthetic_confidence must be between 0 and 100")
	}

	// Component validation
	if err := c.HeatmapOptions().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("heatmap: %v", err))
	}

	if err := c.FeatureParams().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("features: %v", err))
	}

	if c.Reasons.Min < reasons.MinReasons || c.Reasons.Min > reasons.MaxReasons {
		errs = append(errs, fmt.Sprintf("reasons min must be between %d and %d", reasons.MinReasons, reasons.MaxReasons))
	}

	if c.Reasons.Max < c.Reasons.Min || c.Reasons.Max > reasons.MaxReasons {
		errs = append(errs, fmt.Sprintf("reasons max must be at least reasons min and at most %d", reasons.MaxReasons))
	}

	if c.Reference.DefaultCategory == "" {
		errs = append(errs, "reference default_category must not be empty")
	}

	if c.Reference.Scale <= 0 {
		errs = append(errs, "reference scale must be positive")
	}

	if c.Reference.ReloadInterval < 0 {
		errs = append(errs, "reference reload_interval must not be negative")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// FeatureParams returns extraction parameters with the configured overrides.
func (c *Config) FeatureParams() features.Params {
	return features.DefaultParams().
		WithGrid(c.Features.Grid).
		WithScales(c.Features.ClarityScale, c.Features.TextureScale, c.Features.SharpnessScale).
		WithColorScales(c.Features.ConsistencyScale, c.Features.DeviationScale)
}

// HeatmapOptions returns the configured overlay options.
func (c *Config) HeatmapOptions() heatmap.Options {
	return heatmap.DefaultOptions().WithAlpha(c.Heatmap.Alpha).WithColormap(c.Heatmap.Colormap)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}

// Package app assembles the explanation service from configuration and
// manages the lifetime of its external resources.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fakedetect/internal/config"
	"fakedetect/internal/explain"
	"fakedetect/internal/features"
	"fakedetect/internal/gradcam"
	"fakedetect/internal/ocr"
	"fakedetect/internal/reasons"
	"fakedetect/internal/reference"
	"fakedetect/pkg/logger"
)

// Profile origins reported by LoadProfiles.
const (
	OriginRedis   = "redis"
	OriginFile    = "file"
	OriginBuiltin = "builtin"
)

// App holds the wired pipeline and the resources it owns.
type App struct {
	mu sync.Mutex

	Config    *config.Config
	Explainer *explain.Explainer
	Reasons   *reasons.Generator
	Source    gradcam.AttributionSource

	// ProfileOrigin is where the reference profiles were loaded from.
	ProfileOrigin string

	ocr     *ocr.Engine
	watcher *FileWatcher
	log     *logger.Logger
}

// New builds the attribution source, extractor, reason generator and
// reference profiles described by cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}
	a := &App{Config: cfg, log: log.WithComponent("app")}

	a.Source = newSource(cfg.Classifier)
	if cfg.Classifier.Synthetic {
		a.log.Warn("using synthetic attribution source, predictions are fixed",
			"label", cfg.Classifier.SyntheticLabel,
			"confidence", cfg.Classifier.SyntheticConfidence,
		)
	} else {
		a.log.Info("using remote classifier", "url", cfg.Classifier.URL)
	}

	ext, err := features.NewExtractor(cfg.FeatureParams())
	if err != nil {
		return nil, fmt.Errorf("creating feature extractor: %w", err)
	}
	if cfg.Features.OCR {
		engine, err := ocr.NewEngine(cfg.Features.OCRLanguage)
		if err != nil {
			return nil, fmt.Errorf("creating OCR engine: %w", err)
		}
		a.ocr = engine
		ext = ext.WithLineSource(engine)
		a.log.Info("text alignment uses OCR baselines", "language", cfg.Features.OCRLanguage)
	}

	gen, err := reasons.NewGenerator(cfg.Reasons.Min, cfg.Reasons.Max)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating reason generator: %w", err)
	}
	a.Reasons = gen

	profiles, origin, err := LoadProfiles(ctx, cfg.Reference)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ProfileOrigin = origin
	a.log.Info("reference profiles loaded",
		"origin", origin,
		"categories", profiles.Categories(),
		"default", profiles.Fallback(),
	)

	a.Explainer, err = explain.New(explain.Config{
		Source:    a.Source,
		Extractor: ext,
		Reasons:   gen,
		Profiles:  profiles,
		Heatmap:   cfg.HeatmapOptions(),
		Logger:    log,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating explainer: %w", err)
	}
	return a, nil
}

func newSource(cfg config.ClassifierConfig) gradcam.AttributionSource {
	if cfg.Synthetic {
		p := gradcam.NewPrediction(cfg.SyntheticLabel, cfg.SyntheticConfidence)
		return gradcam.NewSyntheticSource().WithPrediction(p)
	}
	return gradcam.NewRemoteSource(cfg.URL, cfg.Timeout)
}

// HealthCheck probes the remote classifier. It is nil for the synthetic
// source.
func (a *App) HealthCheck() func(context.Context) error {
	if remote, ok := a.Source.(*gradcam.RemoteSource); ok {
		return remote.CheckHealth
	}
	return nil
}

// LoadProfiles loads reference profiles from Redis when configured, else
// from the profiles file, else the built-in profile scaled by cfg.Scale.
func LoadProfiles(ctx context.Context, cfg config.ReferenceConfig) (*reference.ProfileSet, string, error) {
	switch {
	case cfg.RedisURL != "":
		loader, err := reference.NewRedisLoader(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to profile store: %w", err)
		}
		defer loader.Close()

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		set, err := loader.Load(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("loading profiles from redis: %w", err)
		}
		return set, OriginRedis, nil

	case cfg.ProfilesFile != "":
		set, err := reference.LoadProfiles(cfg.ProfilesFile)
		if err != nil {
			return nil, "", err
		}
		return set, OriginFile, nil

	default:
		p := reference.DefaultProfile().WithScale(cfg.Scale)
		p.Name = cfg.DefaultCategory
		set, err := reference.NewProfileSet(cfg.DefaultCategory, p)
		if err != nil {
			return nil, "", fmt.Errorf("building default profile: %w", err)
		}
		return set, OriginBuiltin, nil
	}
}

// WatchProfiles reloads the profiles file whenever it changes. It is a no-op
// unless the profiles came from a file and a reload interval is configured.
func (a *App) WatchProfiles() {
	a.mu.Lock()
	defer a.mu.Unlock()

	interval := a.Config.Reference.ReloadInterval
	if a.ProfileOrigin != OriginFile || interval <= 0 || a.watcher != nil {
		return
	}
	path := a.Config.Reference.ProfilesFile
	w := NewFileWatcher(path, interval)
	if w == nil {
		a.log.Warn("cannot watch profiles file", "path", path)
		return
	}
	w.OnChange(func() {
		set, err := reference.LoadProfiles(path)
		if err != nil {
			// keep serving the previous profiles
			a.log.WithError(err).Warn("profile reload failed", "path", path)
			return
		}
		a.Explainer.SetProfiles(set)
		a.log.Info("reference profiles reloaded", "path", path, "categories", set.Categories())
	})
	w.Start()
	a.watcher = w
}

// Close stops the profile watcher and releases the OCR engine.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
	if a.ocr != nil {
		err := a.ocr.Close()
		a.ocr = nil
		return err
	}
	return nil
}

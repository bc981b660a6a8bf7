// Package explain runs the full explanation pipeline for a product image:
// classifier attribution, heatmap rendering, feature extraction, reasons and
// reference comparison.
package explain

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fakedetect/internal/features"
	"fakedetect/internal/gradcam"
	"fakedetect/internal/heatmap"
	"fakedetect/internal/metrics"
	"fakedetect/internal/reasons"
	"fakedetect/internal/reference"
	"fakedetect/pkg/logger"
)

// Stage names used in timings and metrics.
const (
	StageAttribution = "attribution"
	StageHeatmap     = "heatmap"
	StageFeatures    = "features"
	StageReasons     = "reasons"
	StageCompare     = "compare"
)

// Config wires the pipeline components. Source, Extractor and Reasons are
// required; Profiles defaults to the built-in general profile.
type Config struct {
	Source    gradcam.AttributionSource
	Extractor *features.Extractor
	Reasons   *reasons.Generator
	Profiles  *reference.ProfileSet
	Heatmap   heatmap.Options
	Logger    *logger.Logger
}

// Explainer produces explanations. It holds no per-request state and is
// safe for concurrent use.
type Explainer struct {
	source    gradcam.AttributionSource
	extractor *features.Extractor
	reasons   *reasons.Generator
	profiles  atomic.Pointer[reference.ProfileSet]
	heatmap   heatmap.Options
	log       *logger.Logger
}

// New validates cfg and creates an Explainer.
func New(cfg Config) (*Explainer, error) {
	if cfg.Source == nil {
		return nil, errors.New("attribution source is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("feature extractor is required")
	}
	if cfg.Reasons == nil {
		return nil, errors.New("reason generator is required")
	}
	if cfg.Profiles == nil {
		cfg.Profiles = reference.DefaultProfileSet()
	}
	if cfg.Heatmap == (heatmap.Options{}) {
		cfg.Heatmap = heatmap.DefaultOptions()
	}
	if err := cfg.Heatmap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid heatmap options: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	e := &Explainer{
		source:    cfg.Source,
		extractor: cfg.Extractor,
		reasons:   cfg.Reasons,
		heatmap:   cfg.Heatmap,
		log:       cfg.Logger.WithComponent("explain"),
	}
	e.profiles.Store(cfg.Profiles)
	return e, nil
}

// Profiles returns the reference profiles the explainer compares against.
func (e *Explainer) Profiles() *reference.ProfileSet {
	return e.profiles.Load()
}

// SetProfiles replaces the reference profiles. Explanations already running
// keep the set they started with.
func (e *Explainer) SetProfiles(set *reference.ProfileSet) {
	if set != nil {
		e.profiles.Store(set)
	}
}

// Request is one image to explain.
type Request struct {
	Image    image.Image
	Category string
	// Heatmap forces an overlay. Fake verdicts always get one.
	Heatmap bool
}

// Result is the explanation of one image.
type Result struct {
	Prediction   gradcam.Prediction
	Uncertain    bool
	Reasons      []string
	Features     features.Scores
	Similarity   reference.Report
	Activation   gradcam.ActivationMap
	Heatmap      *image.RGBA
	HeatmapError string
	Timings      map[string]time.Duration
}

// Explain runs the pipeline for req. Attribution and feature extraction run
// concurrently. A failed activation map or render leaves Heatmap nil and
// HeatmapError set; the rest of the explanation is still returned.
func (e *Explainer) Explain(ctx context.Context, req Request) (*Result, error) {
	if req.Image == nil || req.Image.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	log := e.log.WithContext(ctx)

	var (
		res                  = &Result{Timings: make(map[string]time.Duration, 5)}
		attrTime, renderTime time.Duration
		featTime             time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		attr, err := e.source.Attribute(gctx, req.Image)
		if err != nil {
			return fmt.Errorf("attribution: %w", err)
		}
		res.Prediction = attr.Prediction

		m, err := attr.Map()
		attrTime = time.Since(start)
		if err != nil {
			res.HeatmapError = err.Error()
			return nil
		}
		res.Activation = m

		if !req.Heatmap && !attr.Prediction.IsFake() {
			return nil
		}
		start = time.Now()
		overlay, err := heatmap.Render(m, req.Image, e.heatmap)
		renderTime = time.Since(start)
		if err != nil {
			res.HeatmapError = err.Error()
			return nil
		}
		res.Heatmap = overlay
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		scores, err := e.extractor.Extract(req.Image)
		featTime = time.Since(start)
		if err != nil {
			return fmt.Errorf("feature extraction: %w", err)
		}
		res.Features = scores
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Timings[StageAttribution] = attrTime
	res.Timings[StageFeatures] = featTime
	if renderTime > 0 {
		res.Timings[StageHeatmap] = renderTime
	}

	start := time.Now()
	res.Reasons = e.reasons.Generate(res.Features, res.Prediction.Label, res.Prediction.Confidence)
	res.Uncertain = reasons.IsUncertain(res.Prediction.Confidence)
	res.Timings[StageReasons] = time.Since(start)

	start = time.Now()
	res.Similarity = e.Profiles().Comparator(req.Category).Compare(res.Features)
	res.Timings[StageCompare] = time.Since(start)

	if res.HeatmapError != "" {
		log.Warn("explanation without heatmap", "error", res.HeatmapError)
		metrics.HeatmapFailuresTotal.Inc()
	}
	for stage, d := range res.Timings {
		metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
	metrics.ExplanationsTotal.WithLabelValues(res.Prediction.Label).Inc()
	metrics.OverallSimilarity.WithLabelValues(res.Similarity.Category).Observe(res.Similarity.Overall)

	log.Debug("explanation complete",
		"label", res.Prediction.Label,
		"confidence", res.Prediction.Confidence,
		"reasons", len(res.Reasons),
		"overall_similarity", res.Similarity.Overall,
	)
	return res, nil
}

// BatchResult pairs a result with the error for one batch item.
type BatchResult struct {
	Result *Result
	Err    error
}

// Batch explains reqs with at most workers running at once. Results are in
// request order. Item failures are reported per item; only cancellation of
// ctx aborts the batch.
func (e *Explainer) Batch(ctx context.Context, reqs []Request, workers int) ([]BatchResult, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Explain(gctx, reqs[i])
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

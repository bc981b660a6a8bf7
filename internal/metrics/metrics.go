// Package metrics defines the Prometheus collectors for the explanation
// pipeline and its HTTP API.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fakedetect_stage_duration_seconds",
		Help:    "Duration of explanation pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ExplanationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fakedetect_explanations_total",
		Help: "Explanations produced by predicted label",
	}, []string{"label"})

	HeatmapFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fakedetect_heatmap_failures_total",
		Help: "Explanations returned without a heatmap after an attribution or render error",
	})

	OverallSimilarity = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fakedetect_overall_similarity",
		Help:    "Overall similarity to the reference profile by category",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"category"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fakedetect_http_request_duration_seconds",
		Help:    "Latency of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			StageDuration,
			ExplanationsTotal,
			HeatmapFailuresTotal,
			OverallSimilarity,
			RequestDuration,
		)
	})
}

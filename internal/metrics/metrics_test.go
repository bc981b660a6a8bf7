package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestCollectorsRecord(t *testing.T) {
	before := testutil.ToFloat64(ExplanationsTotal.WithLabelValues("Fake"))
	ExplanationsTotal.WithLabelValues("Fake").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ExplanationsTotal.WithLabelValues("Fake")))

	HeatmapFailuresTotal.Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(HeatmapFailuresTotal), 1.0)
}

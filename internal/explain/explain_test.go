package explain

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fakedetect/internal/features"
	"fakedetect/internal/gradcam"
	"fakedetect/internal/reasons"
	"fakedetect/internal/reference"
	"fakedetect/internal/tensor"
)

type failingSource struct{ err error }

func (f failingSource) Attribute(context.Context, image.Image) (*gradcam.Attribution, error) {
	return nil, f.err
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{230, 225, 220, 255}
			if (y/16)%2 == 0 && x > 10 && x < w-10 {
				c = color.RGBA{20, 20, 30, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func newExplainer(t *testing.T, src gradcam.AttributionSource) *Explainer {
	t.Helper()
	ext, err := features.NewExtractor(features.DefaultParams())
	require.NoError(t, err)
	gen, err := reasons.NewGenerator(reasons.MinReasons, reasons.MaxReasons)
	require.NoError(t, err)

	e, err := New(Config{Source: src, Extractor: ext, Reasons: gen})
	require.NoError(t, err)
	return e
}

func TestExplainOriginalWithoutHeatmap(t *testing.T) {
	e := newExplainer(t, gradcam.NewSyntheticSource())

	res, err := e.Explain(context.Background(), Request{Image: testImage(120, 96)})
	require.NoError(t, err)

	assert.Equal(t, gradcam.LabelOriginal, res.Prediction.Label)
	assert.False(t, res.Uncertain)
	assert.Nil(t, res.Heatmap)
	assert.Empty(t, res.HeatmapError)
	assert.Equal(t, 7, res.Activation.Rows)
	assert.GreaterOrEqual(t, len(res.Reasons), 3)
	require.NoError(t, res.Features.Validate())
	assert.Equal(t, reference.DefaultCategory, res.Similarity.Category)
	assert.Contains(t, res.Timings, StageFeatures)
	assert.NotContains(t, res.Timings, StageHeatmap)
}

func TestExplainFakeRendersHeatmap(t *testing.T) {
	src := gradcam.NewSyntheticSource().WithPrediction(gradcam.NewPrediction("Fake", 55))
	e := newExplainer(t, src)

	res, err := e.Explain(context.Background(), Request{Image: testImage(80, 60), Category: "unknown"})
	require.NoError(t, err)

	require.NotNil(t, res.Heatmap)
	assert.Equal(t, image.Rect(0, 0, 80, 60), res.Heatmap.Bounds())
	assert.True(t, res.Uncertain)
	assert.Contains(t, res.Timings, StageHeatmap)
}

func TestExplainRequestedHeatmap(t *testing.T) {
	e := newExplainer(t, gradcam.NewSyntheticSource())
	res, err := e.Explain(context.Background(), Request{Image: testImage(40, 40), Heatmap: true})
	require.NoError(t, err)
	assert.NotNil(t, res.Heatmap)
}

func TestExplainDegradesOnBadTensors(t *testing.T) {
	src := gradcam.StaticSource{Attribution: gradcam.Attribution{
		Prediction:  gradcam.NewPrediction("Fake", 92),
		Activations: tensor.New(7, 7, 3),
		Gradients:   tensor.New(7, 7, 4),
	}}
	e := newExplainer(t, src)

	res, err := e.Explain(context.Background(), Request{Image: testImage(64, 64)})
	require.NoError(t, err)
	assert.Nil(t, res.Heatmap)
	assert.NotEmpty(t, res.HeatmapError)
	assert.Equal(t, gradcam.LabelFake, res.Prediction.Label)
	assert.GreaterOrEqual(t, len(res.Reasons), 3)
}

func TestExplainDegradesOnRemoteShapeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"label":       "Fake",
			"confidence":  88,
			"activations": map[string]any{"shape": []int{7, 7, 3}, "data": make([]float64, 147)},
			"gradients":   map[string]any{"shape": []int{7, 7, 4}, "data": make([]float64, 196)},
		})
	}))
	defer srv.Close()

	e := newExplainer(t, gradcam.NewRemoteSource(srv.URL, 5*time.Second))
	res, err := e.Explain(context.Background(), Request{Image: testImage(64, 64)})
	require.NoError(t, err)
	assert.Equal(t, gradcam.LabelFake, res.Prediction.Label)
	assert.Nil(t, res.Heatmap)
	assert.Contains(t, res.HeatmapError, "does not match")
}

func TestExplainErrors(t *testing.T) {
	boom := errors.New("classifier offline")
	e := newExplainer(t, failingSource{err: boom})

	_, err := e.Explain(context.Background(), Request{Image: testImage(32, 32)})
	require.ErrorIs(t, err, boom)

	_, err = e.Explain(context.Background(), Request{})
	require.Error(t, err)
}

func TestExplainIsDeterministic(t *testing.T) {
	e := newExplainer(t, gradcam.NewSyntheticSource())
	img := testImage(100, 100)

	a, err := e.Explain(context.Background(), Request{Image: img})
	require.NoError(t, err)
	b, err := e.Explain(context.Background(), Request{Image: img})
	require.NoError(t, err)

	assert.Equal(t, a.Features, b.Features)
	assert.Equal(t, a.Reasons, b.Reasons)
	assert.Equal(t, a.Similarity, b.Similarity)
	assert.Equal(t, a.Activation, b.Activation)
}

func TestBatchPreservesOrder(t *testing.T) {
	e := newExplainer(t, gradcam.NewSyntheticSource())
	reqs := []Request{
		{Image: testImage(30, 30)},
		{},
		{Image: testImage(50, 20)},
	}

	out, err := e.Batch(context.Background(), reqs, 2)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.Error(t, out[1].Err)
	assert.NoError(t, out[2].Err)
}

func TestBatchCancelled(t *testing.T) {
	e := newExplainer(t, gradcam.NewSyntheticSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Batch(ctx, []Request{{Image: testImage(10, 10)}}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestSetProfilesSwapsReference(t *testing.T) {
	e := newExplainer(t, gradcam.NewSyntheticSource())
	assert.Equal(t, []string{reference.DefaultCategory}, e.Profiles().Categories())

	bags := reference.DefaultProfile()
	bags.Name = "bags"
	set, err := reference.NewProfileSet("bags", bags)
	require.NoError(t, err)

	e.SetProfiles(set)
	e.SetProfiles(nil)

	res, err := e.Explain(context.Background(), Request{Image: testImage(40, 40), Category: "bags"})
	require.NoError(t, err)
	assert.Equal(t, "bags", res.Similarity.Category)
}

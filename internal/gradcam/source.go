package gradcam

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"strings"

	"fakedetect/internal/tensor"
)

// Class labels produced by the binary classifier.
const (
	LabelOriginal = "Original"
	LabelFake     = "Fake"
)

// Prediction is the classifier verdict for one image.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	ClassIndex int     `json:"class_index"`
}

// IsFake reports whether the label names the counterfeit class.
func (p Prediction) IsFake() bool {
	return IsFakeLabel(p.Label)
}

// IsFakeLabel matches the counterfeit label case-insensitively.
func IsFakeLabel(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), LabelFake)
}

// NewPrediction builds a prediction from a label and a confidence percentage.
// Any label other than Fake is treated as Original.
func NewPrediction(label string, confidence float64) Prediction {
	if IsFakeLabel(label) {
		return Prediction{Label: LabelFake, Confidence: confidence, ClassIndex: 1}
	}
	return Prediction{Label: LabelOriginal, Confidence: confidence, ClassIndex: 0}
}

// Attribution is what a classifier exposes for one image: its verdict plus the
// last convolutional activations and the gradient of the predicted class.
type Attribution struct {
	Prediction  Prediction    `json:"prediction"`
	Activations tensor.Tensor `json:"activations"`
	Gradients   tensor.Tensor `json:"gradients"`
}

// Map runs Generate over the attribution tensors.
func (a *Attribution) Map() (ActivationMap, error) {
	return Generate(a.Activations, a.Gradients)
}

// AttributionSource yields classifier attributions for an image.
type AttributionSource interface {
	Attribute(ctx context.Context, img image.Image) (*Attribution, error)
}

// StaticSource returns the same attribution for every image.
type StaticSource struct {
	Attribution Attribution
}

// Attribute implements AttributionSource.
func (s StaticSource) Attribute(ctx context.Context, img image.Image) (*Attribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := Attribution{
		Prediction:  s.Attribution.Prediction,
		Activations: s.Attribution.Activations.Clone(),
		Gradients:   s.Attribution.Gradients.Clone(),
	}
	return &a, nil
}

// SyntheticSource produces deterministic pseudo-random tensors and a fixed
// prediction, for running without a classifier service.
type SyntheticSource struct {
	Prediction Prediction
	Rows, Cols int
	Channels   int
	Seed       uint64
}

// NewSyntheticSource returns a source shaped like a 224x224 backbone's last
// conv block that always predicts Original at 85.5%.
func NewSyntheticSource() SyntheticSource {
	return SyntheticSource{
		Prediction: NewPrediction(LabelOriginal, 85.5),
		Rows:       7,
		Cols:       7,
		Channels:   512,
		Seed:       42,
	}
}

// WithPrediction returns a copy with the given verdict.
func (s SyntheticSource) WithPrediction(p Prediction) SyntheticSource {
	s.Prediction = p
	return s
}

// Attribute implements AttributionSource. The generator is reseeded on every
// call so identical inputs always produce identical tensors.
func (s SyntheticSource) Attribute(ctx context.Context, img image.Image) (*Attribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Rows <= 0 || s.Cols <= 0 || s.Channels <= 0 {
		return nil, shapeErrorf("synthetic", "invalid synthetic shape (%d,%d,%d)", s.Rows, s.Cols, s.Channels)
	}
	if img != nil && img.Bounds().Empty() {
		return nil, fmt.Errorf("synthetic: empty image")
	}

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	act := tensor.New(s.Rows, s.Cols, s.Channels)
	grad := tensor.New(s.Rows, s.Cols, s.Channels)
	for i := range act.Data {
		act.Data[i] = rng.Float64()
		grad.Data[i] = rng.Float64()*2 - 0.5
	}
	return &Attribution{Prediction: s.Prediction, Activations: act, Gradients: grad}, nil
}

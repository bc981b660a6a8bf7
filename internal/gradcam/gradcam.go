// Package gradcam computes class-discriminative activation maps from the
// convolutional feature maps and class gradients of an image classifier.
package gradcam

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"fakedetect/internal/tensor"
)

// ActivationMap is a rows x cols grid of relevance scores in [0,1].
// Values are stored row-major.
type ActivationMap struct {
	Rows, Cols int
	Values     []float64
}

// NewActivationMap allocates a zero map.
func NewActivationMap(rows, cols int) ActivationMap {
	return ActivationMap{Rows: rows, Cols: cols, Values: make([]float64, rows*cols)}
}

// At returns the relevance at (row, col).
func (m ActivationMap) At(row, col int) float64 {
	return m.Values[row*m.Cols+col]
}

// Empty reports whether the map has no cells.
func (m ActivationMap) Empty() bool {
	return m.Rows <= 0 || m.Cols <= 0 || len(m.Values) != m.Rows*m.Cols
}

// Max returns the largest relevance, or 0 for an empty map.
func (m ActivationMap) Max() float64 {
	if m.Empty() {
		return 0
	}
	return floats.Max(m.Values)
}

// Generate produces a Grad-CAM map from an activation tensor and the gradient
// of the target class score with respect to it.
//
// Algorithm:
//  1. Weight each channel by the spatial mean of its gradient.
//  2. Sum the activation channels scaled by their weights, averaged over C.
//  3. ReLU, keeping only evidence for the class.
//  4. Min-max normalise to [0,1].
//
// A map whose post-ReLU range is zero, including one with no positive
// evidence, is returned as all zeros. Non-finite cells count as zero.
func Generate(act, grad tensor.Tensor) (ActivationMap, error) {
	if !act.Valid() {
		return ActivationMap{}, shapeErrorf("generate", "invalid activation tensor shape %v", act.Shape())
	}
	if !grad.Valid() {
		return ActivationMap{}, shapeErrorf("generate", "invalid gradient tensor shape %v", grad.Shape())
	}
	if !act.SameShape(grad) {
		return ActivationMap{}, shapeErrorf("generate", "activation shape %v does not match gradient shape %v", act.Shape(), grad.Shape())
	}

	weights := channelWeights(grad)

	out := NewActivationMap(act.H, act.W)
	invC := 1 / float64(act.C)
	for y := 0; y < act.H; y++ {
		for x := 0; x < act.W; x++ {
			v := floats.Dot(act.Pixel(y, x), weights) * invC
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out.Values[y*act.W+x] = relu(v)
		}
	}

	normalize(out.Values)
	return out, nil
}

func relu(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// channelWeights returns the per-channel spatial mean of the gradient.
func channelWeights(grad tensor.Tensor) []float64 {
	weights := make([]float64, grad.C)
	for y := 0; y < grad.H; y++ {
		for x := 0; x < grad.W; x++ {
			floats.Add(weights, grad.Pixel(y, x))
		}
	}
	floats.Scale(1/float64(grad.H*grad.W), weights)
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			weights[i] = 0
		}
	}
	return weights
}

// normalize rescales values to [0,1] in place. A zero range yields zeros.
func normalize(values []float64) {
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		for i := range values {
			values[i] = 0
		}
		return
	}
	for i, v := range values {
		values[i] = (v - lo) / span
	}
}

package features

import (
	"fmt"
	"math"
)

// Params holds the operator settings for feature extraction.
type Params struct {
	// Smoothing applied before each operator, in pixels.
	ClaritySigma   float64
	TextureSigmaLo float64
	TextureSigmaHi float64
	EdgeSigma      float64

	// Saturation scales: score = 1 - exp(-statistic/scale).
	ClarityScale   float64 // variance of the Laplacian
	TextureScale   float64 // variance of the band-pass response
	SharpnessScale float64 // mean gradient magnitude, grey levels per pixel

	// Canny and probabilistic Hough settings for line detection.
	CannyLow       float32
	CannyHigh      float32
	HoughRho       float32
	HoughTheta     float32
	HoughThreshold int
	MinLineLength  float32
	MaxLineGap     float32

	// Orientation scoring.
	AngleTolerance float64 // radians either side of a dominant orientation
	AlignmentPrior float64 // pseudo-length pulling the score towards 0.5
	MaxSegments    int     // longest segments kept for scoring

	// Colour statistics over a Grid x Grid tiling.
	Grid             int
	ConsistencyScale float64 // per-channel variance of tile means, 0-255 units
	DeviationScale   float64 // mean CIE76 delta E of tile means
}

// DefaultParams returns default extraction parameters.
// These are tuned for product photographs around 224-1024 px on a side.
func DefaultParams() Params {
	return Params{
		ClaritySigma:   1,
		TextureSigmaLo: 1,
		TextureSigmaHi: 3,
		EdgeSigma:      2,

		ClarityScale:   300,
		TextureScale:   70,
		SharpnessScale: 8,

		// Same detector settings the classifier's training pipeline used
		CannyLow:       50,
		CannyHigh:      150,
		HoughRho:       1,
		HoughTheta:     math.Pi / 180,
		HoughThreshold: 50,
		MinLineLength:  30,
		MaxLineGap:     10,

		AngleTolerance: 0.2,
		AlignmentPrior: 60,
		MaxSegments:    500,

		Grid:             2, // quadrants
		ConsistencyScale: 5000,
		DeviationScale:   30,
	}
}

// WithGrid returns a copy of params using an n x n tile grid for colour statistics.
func (p Params) WithGrid(n int) Params {
	p.Grid = n
	return p
}

// WithScales returns a copy of params with custom saturation scales.
func (p Params) WithScales(clarity, texture, sharpness float64) Params {
	p.ClarityScale = clarity
	p.TextureScale = texture
	p.SharpnessScale = sharpness
	return p
}

// WithColorScales returns a copy of params with custom colour normalisation.
func (p Params) WithColorScales(consistency, deviation float64) Params {
	p.ConsistencyScale = consistency
	p.DeviationScale = deviation
	return p
}

// WithHough returns a copy of params with custom line detection thresholds.
func (p Params) WithHough(threshold int, minLength, maxGap float32) Params {
	p.HoughThreshold = threshold
	p.MinLineLength = minLength
	p.MaxLineGap = maxGap
	return p
}

// Validate reports the first unusable setting.
func (p Params) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"clarity sigma", p.ClaritySigma},
		{"texture sigma lo", p.TextureSigmaLo},
		{"texture sigma hi", p.TextureSigmaHi},
		{"edge sigma", p.EdgeSigma},
		{"clarity scale", p.ClarityScale},
		{"texture scale", p.TextureScale},
		{"sharpness scale", p.SharpnessScale},
		{"angle tolerance", p.AngleTolerance},
		{"consistency scale", p.ConsistencyScale},
		{"deviation scale", p.DeviationScale},
		{"hough rho", float64(p.HoughRho)},
		{"hough theta", float64(p.HoughTheta)},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be positive, got %g", f.name, f.v)
		}
	}
	if p.TextureSigmaHi <= p.TextureSigmaLo {
		return fmt.Errorf("texture sigma hi (%g) must exceed lo (%g)", p.TextureSigmaHi, p.TextureSigmaLo)
	}
	if p.AlignmentPrior < 0 {
		return fmt.Errorf("alignment prior must not be negative")
	}
	if p.Grid < 1 || p.Grid > 16 {
		return fmt.Errorf("grid must be in [1,16], got %d", p.Grid)
	}
	if p.MaxSegments < 1 {
		return fmt.Errorf("max segments must be positive")
	}
	if p.HoughThreshold < 1 {
		return fmt.Errorf("hough threshold must be positive")
	}
	return nil
}

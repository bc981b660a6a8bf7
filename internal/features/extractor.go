package features

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	fdimage "fakedetect/internal/image"
)

// minSide is the smallest width or height for neighbourhood operators.
// Smaller images score zero sharpness and neutral alignment.
const minSide = 3

// Extractor computes feature scores. It is immutable and safe for concurrent
// use when its LineSource is.
type Extractor struct {
	params Params
	lines  LineSource
}

// NewExtractor creates an extractor with validated parameters.
func NewExtractor(p Params) (*Extractor, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature params: %w", err)
	}
	return &Extractor{params: p}, nil
}

// WithLineSource returns a copy of the extractor that adds segments from ls
// to the alignment evidence.
func (e *Extractor) WithLineSource(ls LineSource) *Extractor {
	c := *e
	c.lines = ls
	return &c
}

// Params returns the extractor's parameters.
func (e *Extractor) Params() Params {
	return e.params
}

// Extract computes all six feature scores for img. Any non-empty image
// yields finite, in-range scores.
func (e *Extractor) Extract(img image.Image) (Scores, error) {
	if img == nil || img.Bounds().Empty() {
		return Scores{}, fmt.Errorf("empty image")
	}

	bgr, err := fdimage.ToMat(img)
	if err != nil {
		return Scores{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer bgr.Close()

	var s Scores

	means := tileMeans(bgr, e.params.Grid)
	s.ColorConsistency = colorConsistency(means, e.params.ConsistencyScale)
	s.ColorDeviation = colorDeviation(means, bgr.Mean(), e.params.DeviationScale)

	if bgr.Cols() < minSide || bgr.Rows() < minSide {
		s.TextAlignment = 0.5
		return s.sanitized(), nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	grayF := gocv.NewMat()
	defer grayF.Close()
	gray.ConvertTo(&grayF, gocv.MatTypeCV64F)

	p := e.params
	s.LogoClarity = saturate(laplacianVariance(grayF, p.ClaritySigma), p.ClarityScale)
	s.PrintTexture = saturate(bandPassVariance(grayF, p.TextureSigmaLo, p.TextureSigmaHi), p.TextureScale)
	s.EdgeSharpness = saturate(meanGradient(grayF, p.EdgeSigma), p.SharpnessScale)

	ev := detectSegments(gray, p)
	if e.lines != nil {
		// OCR evidence is optional; a failed read leaves the Hough segments
		if extra, err := e.lines.TextLines(img); err == nil {
			ev = append(ev, fullStrength(extra)...)
		}
	}
	s.TextAlignment = alignmentScore(ev, p)

	return s.sanitized(), nil
}

// Extract computes feature scores with DefaultParams.
func Extract(img image.Image) (Scores, error) {
	e := &Extractor{params: DefaultParams()}
	return e.Extract(img)
}

func (s Scores) sanitized() Scores {
	return Scores{
		LogoClarity:      clamp01(s.LogoClarity),
		TextAlignment:    clamp01(s.TextAlignment),
		ColorConsistency: clamp01(s.ColorConsistency),
		PrintTexture:     clamp01(s.PrintTexture),
		EdgeSharpness:    clamp01(s.EdgeSharpness),
		ColorDeviation:   clamp01(s.ColorDeviation),
	}
}

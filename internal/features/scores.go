// Package features computes the hand-engineered image-quality scores that
// back the textual explanations: logo clarity, text alignment, colour
// consistency, print texture, edge sharpness and colour deviation.
package features

import (
	"fmt"
	"math"
	"sort"
)

// Feature names. These are the keys of every serialised score set.
const (
	LogoClarity      = "logo_clarity"
	TextAlignment    = "text_alignment_score"
	ColorConsistency = "color_consistency"
	PrintTexture     = "print_texture_score"
	EdgeSharpness    = "edge_sharpness"
	ColorDeviation   = "color_deviation"

	numFeatures      = 6
	similaritySuffix = "_similarity"
)

// Names returns the six feature names in canonical order.
func Names() []string {
	return []string{LogoClarity, TextAlignment, ColorConsistency, PrintTexture, EdgeSharpness, ColorDeviation}
}

// SimilarityKey returns the report key for a feature, e.g. logo_clarity_similarity.
func SimilarityKey(name string) string {
	return name + similaritySuffix
}

// Scores is the fixed set of six feature values for one image. All values
// lie in [0,1]. Higher is better for every feature except ColorDeviation.
type Scores struct {
	LogoClarity      float64 `json:"logo_clarity" yaml:"logo_clarity" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	TextAlignment    float64 `json:"text_alignment_score" yaml:"text_alignment_score" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	ColorConsistency float64 `json:"color_consistency" yaml:"color_consistency" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	PrintTexture     float64 `json:"print_texture_score" yaml:"print_texture_score" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	EdgeSharpness    float64 `json:"edge_sharpness" yaml:"edge_sharpness" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	ColorDeviation   float64 `json:"color_deviation" yaml:"color_deviation" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
}

// Uniform returns scores with every feature set to v.
func Uniform(v float64) Scores {
	return Scores{v, v, v, v, v, v}
}

// Values returns the scores in Names order.
func (s Scores) Values() []float64 {
	return []float64{s.LogoClarity, s.TextAlignment, s.ColorConsistency, s.PrintTexture, s.EdgeSharpness, s.ColorDeviation}
}

// Get returns the value for a feature name.
func (s Scores) Get(name string) (float64, bool) {
	switch name {
	case LogoClarity:
		return s.LogoClarity, true
	case TextAlignment:
		return s.TextAlignment, true
	case ColorConsistency:
		return s.ColorConsistency, true
	case PrintTexture:
		return s.PrintTexture, true
	case EdgeSharpness:
		return s.EdgeSharpness, true
	case ColorDeviation:
		return s.ColorDeviation, true
	}
	return 0, false
}

func (s *Scores) set(name string, v float64) bool {
	switch name {
	case LogoClarity:
		s.LogoClarity = v
	case TextAlignment:
		s.TextAlignment = v
	case ColorConsistency:
		s.ColorConsistency = v
	case PrintTexture:
		s.PrintTexture = v
	case EdgeSharpness:
		s.EdgeSharpness = v
	case ColorDeviation:
		s.ColorDeviation = v
	default:
		return false
	}
	return true
}

// Map returns the scores keyed by feature name.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, numFeatures)
	for i, name := range Names() {
		m[name] = s.Values()[i]
	}
	return m
}

// FromMap builds Scores from a name-keyed map. All six names are required
// and unknown names are rejected.
func FromMap(m map[string]float64) (Scores, error) {
	var s Scores
	var unknown []string
	for name, v := range m {
		if !s.set(name, v) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Scores{}, fmt.Errorf("unknown features: %v", unknown)
	}
	for _, name := range Names() {
		if _, ok := m[name]; !ok {
			return Scores{}, fmt.Errorf("missing feature %q", name)
		}
	}
	return s, nil
}

// Validate checks that every score is finite and within [0,1].
func (s Scores) Validate() error {
	for i, v := range s.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", Names()[i])
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("%s=%g out of range [0,1]", Names()[i], v)
		}
	}
	return nil
}

// clamp01 maps NaN to 0 and clamps to [0,1].
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// saturate maps a non-negative statistic to [0,1) with 1-exp(-x/scale).
func saturate(x, scale float64) float64 {
	if !(scale > 0) || math.IsNaN(x) || x <= 0 {
		return 0
	}
	return clamp01(1 - math.Exp(-x/scale))
}

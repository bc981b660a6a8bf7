// Package reasons turns feature scores and a classifier verdict into a short,
// ordered list of human-readable justifications.
package reasons

import (
	"fmt"
	"math"

	"fakedetect/internal/features"
	"fakedetect/internal/gradcam"
)

const (
	// MinReasons is the default lower bound on list length.
	MinReasons = 3
	// MaxReasons is the default upper bound on list length.
	MaxReasons = 5
	// LowConfidence is the confidence (percent) below which a verdict is
	// flagged as uncertain.
	LowConfidence = 60.0
)

// Generator produces reason lists of bounded length.
type Generator struct {
	min, max int
}

// NewGenerator creates a generator returning between minReasons and
// maxReasons entries. Both bounds must lie in [MinReasons, MaxReasons].
func NewGenerator(minReasons, maxReasons int) (*Generator, error) {
	if minReasons < MinReasons || minReasons > MaxReasons {
		return nil, fmt.Errorf("min reasons must be in [%d,%d], got %d", MinReasons, MaxReasons, minReasons)
	}
	if maxReasons < minReasons || maxReasons > MaxReasons {
		return nil, fmt.Errorf("max reasons must be in [%d,%d], got %d", minReasons, MaxReasons, maxReasons)
	}
	return &Generator{min: minReasons, max: maxReasons}, nil
}

// Generate returns reasons for the verdict. Labels other than Fake
// (case-insensitive) get the Original wording. The result has no
// duplicates and holds between the generator's bounds.
//
// Order:
//  1. Feature rules for the label, in table order
//  2. The first confidence tier the confidence exceeds
//  3. Generic fallbacks, only while the list is shorter than the minimum
func (g *Generator) Generate(s features.Scores, label string, confidence float64) []string {
	fake := gradcam.IsFakeLabel(label)
	rules, tiers, fallback := originalRules, originalTiers, originalFallback
	if fake {
		rules, tiers, fallback = fakeRules, fakeTiers, fakeFallback
	}

	out := make([]string, 0, g.max)
	seen := make(map[string]bool, g.max)
	add := func(r string) {
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}

	for _, r := range rules {
		if v, ok := s.Get(r.feature); ok && r.applies(v) {
			add(r.sentence)
		}
	}
	for _, t := range tiers {
		if confidence > t.above {
			add(t.sentence)
			break
		}
	}

	if len(out) < g.min {
		pool := fallback
		if isLowConfidence(confidence) {
			pool = append([]string{lowConfidenceNotice}, fallback...)
		}
		for _, r := range pool {
			if len(out) >= g.min {
				break
			}
			add(r)
		}
	}

	if len(out) > g.max {
		out = out[:g.max]
	}
	return out
}

// Generate produces reasons with the default bounds.
func Generate(s features.Scores, label string, confidence float64) []string {
	g := &Generator{min: MinReasons, max: MaxReasons}
	return g.Generate(s, label, confidence)
}

// IsUncertain reports whether a confidence percentage is too low to act on.
func IsUncertain(confidence float64) bool {
	return isLowConfidence(confidence)
}

func isLowConfidence(confidence float64) bool {
	return math.IsNaN(confidence) || confidence < LowConfidence
}

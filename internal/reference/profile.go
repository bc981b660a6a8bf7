// Package reference compares extracted feature scores with reference
// profiles of authentic products.
package reference

import (
	"fmt"
	"math"

	"fakedetect/internal/features"
)

// DefaultCategory names the profile used when no category matches.
const DefaultCategory = "general"

// Profile is the expected feature scores for authentic products of one
// category. Scale is the score difference at which similarity reaches 0.
type Profile struct {
	Name     string
	Features features.Scores
	Scale    float64
}

// DefaultProfile returns the built-in general profile.
func DefaultProfile() Profile {
	return Profile{
		Name: DefaultCategory,
		Features: features.Scores{
			LogoClarity:      0.75,
			TextAlignment:    0.80,
			ColorConsistency: 0.75,
			PrintTexture:     0.70,
			EdgeSharpness:    0.65,
			ColorDeviation:   0.25,
		},
		Scale: 1.0,
	}
}

// WithScale returns a copy of the profile with a custom similarity scale.
func (p Profile) WithScale(scale float64) Profile {
	p.Scale = scale
	return p
}

// Validate checks the profile name, feature ranges and scale.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is empty")
	}
	if err := p.Features.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) || p.Scale < 0 {
		return fmt.Errorf("profile %q: invalid scale %g", p.Name, p.Scale)
	}
	return nil
}

// effectiveScale falls back to 1 for unusable scales.
func (p Profile) effectiveScale() float64 {
	if !(p.Scale > 0) || math.IsInf(p.Scale, 0) {
		return 1
	}
	return p.Scale
}

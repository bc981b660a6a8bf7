package reference

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"

	"fakedetect/internal/features"
)

// Report holds per-feature similarities and their mean.
type Report struct {
	Category   string
	PerFeature map[string]float64
	Overall    float64
}

// Map returns the report keyed <feature>_similarity plus overall_similarity.
func (r Report) Map() map[string]float64 {
	m := make(map[string]float64, len(r.PerFeature)+1)
	for name, v := range r.PerFeature {
		m[features.SimilarityKey(name)] = v
	}
	m["overall_similarity"] = r.Overall
	return m
}

// MarshalJSON encodes the flattened Map form.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Similarity scores one feature against its reference value:
// 1 - min(1, |q-r|/scale). Non-positive scales fall back to 1, and
// non-finite inputs score 0.
func Similarity(q, r, scale float64) float64 {
	if !(scale > 0) || math.IsInf(scale, 0) {
		scale = 1
	}
	d := math.Abs(q-r) / scale
	if math.IsNaN(d) {
		return 0
	}
	return 1 - math.Min(1, d)
}

// Compare scores s against the profile.
func Compare(s features.Scores, p Profile) Report {
	scale := p.effectiveScale()
	names := features.Names()
	got, want := s.Values(), p.Features.Values()

	sims := make([]float64, len(names))
	per := make(map[string]float64, len(names))
	for i, name := range names {
		sims[i] = Similarity(got[i], want[i], scale)
		per[name] = sims[i]
	}
	return Report{Category: p.Name, PerFeature: per, Overall: stat.Mean(sims, nil)}
}

// Comparator compares scores against one fixed profile.
type Comparator struct {
	profile Profile
}

// NewComparator creates a comparator for p.
func NewComparator(p Profile) *Comparator {
	return &Comparator{profile: p}
}

// Profile returns the comparator's reference profile.
func (c *Comparator) Profile() Profile {
	return c.profile
}

// Compare scores s against the comparator's profile.
func (c *Comparator) Compare(s features.Scores) Report {
	return Compare(s, c.profile)
}

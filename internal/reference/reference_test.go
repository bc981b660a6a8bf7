package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fakedetect/internal/features"
)

func TestCompareIdenticalScores(t *testing.T) {
	p := Profile{Name: "test", Features: features.Uniform(1), Scale: 1}
	r := Compare(features.Uniform(1), p)

	assert.Equal(t, 1.0, r.Overall)
	require.Len(t, r.PerFeature, 6)
	for name, v := range r.PerFeature {
		assert.Equal(t, 1.0, v, name)
	}
}

func TestCompareOppositeScores(t *testing.T) {
	p := Profile{Name: "test", Features: features.Uniform(1), Scale: 1}
	r := Compare(features.Uniform(0), p)

	assert.Equal(t, 0.0, r.Overall)
	for name, v := range r.PerFeature {
		assert.Equal(t, 0.0, v, name)
	}
}

func TestCompareOverallIsMean(t *testing.T) {
	q := features.Scores{LogoClarity: 0.75, TextAlignment: 0.6, ColorConsistency: 0.75, PrintTexture: 0.7, EdgeSharpness: 0.65, ColorDeviation: 0.85}
	r := NewComparator(DefaultProfile()).Compare(q)

	assert.InDelta(t, 0.8, r.PerFeature[features.TextAlignment], 1e-12)
	assert.InDelta(t, 0.4, r.PerFeature[features.ColorDeviation], 1e-12)
	assert.InDelta(t, (4+0.8+0.4)/6, r.Overall, 1e-12)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name        string
		q, r, scale float64
		want        float64
	}{
		{"equal", 0.3, 0.3, 1, 1},
		{"half", 0.2, 0.7, 1, 0.5},
		{"narrow scale saturates", 0.2, 0.7, 0.25, 0},
		{"wide scale", 0, 1, 4, 0.75},
		{"zero scale falls back", 0.2, 0.7, 0, 0.5},
		{"negative scale falls back", 0.2, 0.7, -2, 0.5},
		{"nan scale falls back", 0.2, 0.7, math.NaN(), 0.5},
		{"nan input", math.NaN(), 0.7, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.q, tt.r, tt.scale)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestReportJSON(t *testing.T) {
	r := Compare(features.Uniform(1), Profile{Name: "x", Features: features.Uniform(1)})
	out, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]float64
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Len(t, m, 7)
	assert.Equal(t, 1.0, m["overall_similarity"])
	assert.Equal(t, 1.0, m["logo_clarity_similarity"])
	assert.Equal(t, 1.0, m["color_deviation_similarity"])
}

func TestProfileSetFallback(t *testing.T) {
	cosmetics := Profile{Name: "Cosmetics", Features: features.Uniform(0.9), Scale: 0.5}
	set, err := NewProfileSet("", DefaultProfile(), cosmetics)
	require.NoError(t, err)

	p, ok := set.Lookup("cosmetics")
	assert.True(t, ok)
	assert.Equal(t, "Cosmetics", p.Name)

	p, ok = set.Lookup("sneakers")
	assert.False(t, ok)
	assert.Equal(t, DefaultCategory, p.Name)

	assert.Equal(t, []string{"Cosmetics", "general"}, set.Categories())
	assert.Equal(t, 0.5, set.Comparator(" COSMETICS ").Profile().Scale)
}

func TestNewProfileSetErrors(t *testing.T) {
	_, err := NewProfileSet("missing", DefaultProfile())
	require.Error(t, err)

	_, err = NewProfileSet("", DefaultProfile(), DefaultProfile())
	require.Error(t, err)

	bad := DefaultProfile()
	bad.Features.LogoClarity = 2
	_, err = NewProfileSet("", bad)
	require.Error(t, err)

	set, err := NewProfileSet("")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultCategory}, set.Categories())
}

func TestProfilesYAMLRoundTrip(t *testing.T) {
	cosmetics := Profile{Name: "cosmetics", Features: features.Uniform(0.8), Scale: 0.5}

	var buf bytes.Buffer
	require.NoError(t, WriteProfiles(&buf, "cosmetics", DefaultProfile(), cosmetics))

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	set, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, "cosmetics", set.Fallback())

	p, ok := set.Lookup("general")
	require.True(t, ok)
	assert.Equal(t, DefaultProfile(), p)

	p, _ = set.Lookup("unknown")
	assert.Equal(t, cosmetics, p)
}

func TestParseProfilesErrors(t *testing.T) {
	tests := map[string]string{
		"empty":           ``,
		"no profiles":     "default: general\n",
		"missing feature": "profiles:\n  general:\n    features:\n      logo_clarity: 0.5\n",
		"unknown field":   "profiles:\n  general:\n    colour: 1\n",
		"bad fallback": `default: shoes
profiles:
  general:
    features: {logo_clarity: 1, text_alignment_score: 1, color_consistency: 1, print_texture_score: 1, edge_sharpness: 1, color_deviation: 0}
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProfiles([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParseProfilesDefaultsScale(t *testing.T) {
	doc := `profiles:
  general:
    features: {logo_clarity: 1, text_alignment_score: 1, color_consistency: 1, print_texture_score: 1, edge_sharpness: 1, color_deviation: 0}
`
	set, err := ParseProfiles([]byte(doc))
	require.NoError(t, err)
	p, ok := set.Lookup("general")
	require.True(t, ok)
	assert.Equal(t, 1.0, p.Scale)
}

func TestNewRedisLoaderInvalidURL(t *testing.T) {
	_, err := NewRedisLoader("invalid://url", "")
	require.Error(t, err)
}

func TestNewRedisLoaderConnectionFailure(t *testing.T) {
	_, err := NewRedisLoader("redis://localhost:9999", "")
	require.Error(t, err)
}

func TestRedisLoaderSaveAndLoad(t *testing.T) {
	// Skip if Redis not available
	loader, err := NewRedisLoader("redis://localhost:6379/15", "fakedetect:test:")
	if err != nil {
		t.Skip("Redis not available:", err)
	}
	defer loader.Close()

	ctx := context.Background()
	defer loader.client.Del(ctx,
		"fakedetect:test:categories",
		"fakedetect:test:default",
		"fakedetect:test:profile:general",
		"fakedetect:test:profile:watches",
	)

	watches := Profile{Name: "watches", Features: features.Uniform(0.6), Scale: 0.75}
	set, err := NewProfileSet("", DefaultProfile(), watches)
	require.NoError(t, err)
	require.NoError(t, loader.Save(ctx, set))

	loaded, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, set.Categories(), loaded.Categories())

	p, ok := loaded.Lookup("watches")
	require.True(t, ok)
	assert.Equal(t, watches, p)
}

package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentOrientation(t *testing.T) {
	tests := []struct {
		seg  Segment
		want float64
	}{
		{Segment{0, 0, 10, 0}, 0},
		{Segment{10, 0, 0, 0}, 0},
		{Segment{0, 0, 0, 10}, math.Pi / 2},
		{Segment{0, 10, 0, 0}, math.Pi / 2},
		{Segment{0, 0, 10, 10}, math.Pi / 4},
		{Segment{10, 10, 0, 0}, math.Pi / 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.seg.Orientation(), 1e-12, "%+v", tt.seg)
	}
}

func TestAngleDistanceWrapsAroundPi(t *testing.T) {
	assert.InDelta(t, 0.02, angleDistance(0.01, math.Pi-0.01), 1e-12)
	assert.InDelta(t, math.Pi/2, angleDistance(0, math.Pi/2), 1e-12)
}

func TestAlignmentScore(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 0.5, alignmentScore(nil, p))
	assert.Equal(t, 0.5, alignmentScore(fullStrength([]Segment{{5, 5, 5, 5}}), p))

	var grid []Segment
	for i := 0; i < 10; i++ {
		y := float64(i * 10)
		grid = append(grid, Segment{0, y, 100, y})
		grid = append(grid, Segment{y, 0, y, 100})
	}
	assert.InDelta(t, 1.0, alignmentScore(fullStrength(grid), p), 0.03)

	// Eight evenly spread orientations: two windows capture at most a quarter
	var fan []Segment
	for i := 0; i < 8; i++ {
		a := float64(i) * math.Pi / 8
		fan = append(fan, Segment{0, 0, 100 * math.Cos(a), 100 * math.Sin(a)})
	}
	score := alignmentScore(fullStrength(fan), p)
	assert.Less(t, score, alignmentScore(fullStrength(grid), p))
	assert.InDelta(t, (200+30)/(800+60.0), score, 1e-9)
}

func TestAlignmentScoreCapsSegments(t *testing.T) {
	p := DefaultParams()
	p.MaxSegments = 2

	segs := []Segment{
		{0, 0, 100, 0},
		{0, 0, 0, 100},
		{0, 0, 5, 5},
		{0, 0, 5, -5},
	}
	assert.InDelta(t, (200+30)/(200+60.0), alignmentScore(fullStrength(segs), p), 1e-9)
}

func TestAlignmentScoreRampsShortLines(t *testing.T) {
	p := DefaultParams()

	// A segment at the detection minimum carries no mass
	assert.Equal(t, 0.5, alignmentScore(fullStrength([]Segment{{0, 0, 30, 0}}), p))

	prev := 0.5
	for l := 31.0; l <= 120; l++ {
		score := alignmentScore(fullStrength([]Segment{{0, 0, l, 0}}), p)
		assert.Greater(t, score, prev, "length %g", l)
		assert.InDelta(t, prev, score, 0.02, "length %g", l)
		prev = score
	}
	// Full weight from twice the minimum length
	assert.InDelta(t, (90+30)/(90+60.0), alignmentScore(fullStrength([]Segment{{0, 0, 90, 0}}), p), 1e-9)
}

func TestAlignmentScoreWeighsStrength(t *testing.T) {
	p := DefaultParams()
	seg := Segment{0, 0, 100, 0}

	assert.Equal(t, 0.5, alignmentScore([]evidence{{seg: seg, strength: 0}}, p))
	assert.InDelta(t, (50+30)/(50+60.0), alignmentScore([]evidence{{seg: seg, strength: 0.5}}, p), 1e-9)
	assert.InDelta(t, (100+30)/(100+60.0), alignmentScore([]evidence{{seg: seg, strength: 3}}, p), 1e-9)
}

func TestRamp(t *testing.T) {
	assert.Equal(t, 0.0, ramp(-5, 30))
	assert.Equal(t, 0.5, ramp(15, 30))
	assert.Equal(t, 1.0, ramp(45, 30))
	assert.Equal(t, 1.0, ramp(-5, 0))
}

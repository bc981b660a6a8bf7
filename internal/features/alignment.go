package features

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

// Segment is a straight line segment in image pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(s.X2-s.X1, s.Y2-s.Y1)
}

// Orientation returns the undirected angle of the segment in [0, pi).
func (s Segment) Orientation() float64 {
	a := math.Atan2(s.Y2-s.Y1, s.X2-s.X1)
	if a < 0 {
		a += math.Pi
	}
	if a >= math.Pi {
		a -= math.Pi
	}
	return a
}

// LineSource supplies extra segments for the alignment score, such as text
// baselines found by OCR. Implementations must be safe for concurrent use.
type LineSource interface {
	TextLines(img image.Image) ([]Segment, error)
}

// evidence is a segment with the weight of its edge response. Hough segments
// carry their contrast ramp; OCR baselines count in full.
type evidence struct {
	seg      Segment
	strength float64
}

func fullStrength(segs []Segment) []evidence {
	out := make([]evidence, len(segs))
	for i, s := range segs {
		out[i] = evidence{seg: s, strength: 1}
	}
	return out
}

// detectSegments finds straight edges in an 8-bit grey image.
//
// Algorithm:
//  1. 5x5 Gaussian blur to suppress sensor noise
//  2. Canny edge detection
//  3. Probabilistic Hough transform
//  4. Strength of each segment from the mean gradient along it
func detectSegments(gray gocv.Mat, p Params) []evidence {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, p.CannyLow, p.CannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, p.HoughRho, p.HoughTheta, p.HoughThreshold, p.MinLineLength, p.MaxLineGap)
	if lines.Rows() == 0 {
		return nil
	}

	// Strength rises from zero at CannyHigh to one at three times it
	grad := sobelField(blurred)
	out := make([]evidence, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		s := Segment{
			X1: float64(v[0]), Y1: float64(v[1]),
			X2: float64(v[2]), Y2: float64(v[3]),
		}
		g := grad.along(s)
		out = append(out, evidence{seg: s, strength: ramp(g-float64(p.CannyHigh), 2*float64(p.CannyHigh))})
	}
	return out
}

// gradientField holds the Sobel derivatives Canny thresholds.
type gradientField struct {
	gx, gy     []float64
	cols, rows int
}

func sobelField(blurred gocv.Mat) gradientField {
	gx := gocv.NewMat()
	defer gx.Close()
	gocv.Sobel(blurred, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderReflect101)

	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(blurred, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderReflect101)

	dx, err := gx.DataPtrFloat64()
	if err != nil {
		return gradientField{}
	}
	dy, err := gy.DataPtrFloat64()
	if err != nil || len(dy) != len(dx) {
		return gradientField{}
	}
	// DataPtr aliases the Mat, which is closed on return
	return gradientField{
		gx:   append([]float64(nil), dx...),
		gy:   append([]float64(nil), dy...),
		cols: blurred.Cols(),
		rows: blurred.Rows(),
	}
}

// along returns the mean gradient across the segment, sampled at unit steps.
// Only the component normal to the segment counts, so pixel noise averages
// out instead of adding to the contrast.
func (f gradientField) along(s Segment) float64 {
	l := s.Length()
	if len(f.gx) == 0 || !(l > 0) {
		return 0
	}
	nx, ny := -(s.Y2-s.Y1)/l, (s.X2-s.X1)/l
	n := int(math.Ceil(l)) + 1
	var sum float64
	var used int
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		x := int(math.Round(s.X1 + t*(s.X2-s.X1)))
		y := int(math.Round(s.Y1 + t*(s.Y2-s.Y1)))
		if x < 0 || y < 0 || x >= f.cols || y >= f.rows {
			continue
		}
		k := y*f.cols + x
		sum += math.Abs(f.gx[k]*nx + f.gy[k]*ny)
		used++
	}
	if used == 0 {
		return 0
	}
	return sum / float64(used)
}

// ramp maps excess in [0, width] linearly onto [0, 1].
func ramp(excess, width float64) float64 {
	if !(width > 0) {
		return 1
	}
	return clamp01(excess / width)
}

// alignmentScore measures how much of the line mass follows the two dominant
// orientations of the image. Printed text and packaging layouts are built on
// one or two axes, so regular artwork scores near 1 and scattered or skewed
// strokes score lower. A length prior pulls sparse evidence towards 0.5, and
// no evidence at all scores exactly 0.5.
//
// A segment's mass is its length scaled by two ramps that start at zero, one
// over length above MinLineLength and one over edge contrast above CannyHigh.
// Lines that only just pass detection add almost nothing, so noise toggling
// them moves the score continuously.
func alignmentScore(ev []evidence, p Params) float64 {
	type line struct {
		angle, mass float64
	}
	minLen := float64(p.MinLineLength)
	lines := make([]line, 0, len(ev))
	for _, e := range ev {
		l := e.seg.Length()
		if !(l > 0) || math.IsInf(l, 0) {
			continue
		}
		m := l * ramp(l-minLen, minLen) * clamp01(e.strength)
		if !(m > 0) {
			continue
		}
		lines = append(lines, line{angle: e.seg.Orientation(), mass: m})
	}
	if len(lines) == 0 {
		return 0.5
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].mass > lines[j].mass })
	if len(lines) > p.MaxSegments {
		lines = lines[:p.MaxSegments]
	}

	var total float64
	for _, l := range lines {
		total += l.mass
	}

	massNear := func(theta float64) float64 {
		var m float64
		for _, l := range lines {
			if angleDistance(l.angle, theta) <= p.AngleTolerance {
				m += l.mass
			}
		}
		return m
	}

	primary, best := lines[0].angle, -1.0
	for _, l := range lines {
		if m := massNear(l.angle); m > best {
			primary, best = l.angle, m
		}
	}
	secondary, hasSecondary, best := 0.0, false, -1.0
	for _, l := range lines {
		if angleDistance(l.angle, primary) <= p.AngleTolerance {
			continue
		}
		if m := massNear(l.angle); m > best {
			secondary, hasSecondary, best = l.angle, true, m
		}
	}

	var aligned float64
	for _, l := range lines {
		if angleDistance(l.angle, primary) <= p.AngleTolerance ||
			(hasSecondary && angleDistance(l.angle, secondary) <= p.AngleTolerance) {
			aligned += l.mass
		}
	}

	return clamp01((aligned + 0.5*p.AlignmentPrior) / (total + p.AlignmentPrior))
}

// angleDistance is the distance between two undirected orientations.
func angleDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), math.Pi)
	return math.Min(d, math.Pi-d)
}

// Package colorutil provides perceptual colour helpers shared by the feature
// extractor and the profile tooling.
package colorutil

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// FromBGR converts OpenCV-ordered channel means (0-255) to a colour.
// Out-of-range and non-finite inputs are clamped.
func FromBGR(b, g, r float64) colorful.Color {
	return colorful.Color{R: unit(r), G: unit(g), B: unit(b)}
}

// FromColor converts any color.Color, ignoring alpha.
func FromColor(c color.Color) colorful.Color {
	col, _ := colorful.MakeColor(c)
	return col.Clamped()
}

// DeltaE returns the CIE76 colour difference in conventional units, where
// about 2.3 is a just-noticeable difference and 100 spans black to white.
func DeltaE(a, b colorful.Color) float64 {
	return a.DistanceCIE76(b) * 100
}

// MeanDeltaE returns the average DeltaE of each colour from ref.
// An empty slice yields 0.
func MeanDeltaE(colors []colorful.Color, ref colorful.Color) float64 {
	if len(colors) == 0 {
		return 0
	}
	var sum float64
	for _, c := range colors {
		sum += DeltaE(c, ref)
	}
	return sum / float64(len(colors))
}

// Hex formats a colour as #rrggbb.
func Hex(c colorful.Color) string {
	return c.Clamped().Hex()
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(255, v)) / 255
}

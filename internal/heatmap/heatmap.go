// Package heatmap renders activation maps as colourised overlays on the
// analysed image.
package heatmap

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"fakedetect/internal/gradcam"
	fdimage "fakedetect/internal/image"
)

// DefaultAlpha is the heat weight in the blend.
const DefaultAlpha = 0.4

var colormaps = map[string]gocv.ColormapTypes{
	"autumn":  gocv.ColormapAutumn,
	"bone":    gocv.ColormapBone,
	"jet":     gocv.ColormapJet,
	"winter":  gocv.ColormapWinter,
	"rainbow": gocv.ColormapRainbow,
	"ocean":   gocv.ColormapOcean,
	"summer":  gocv.ColormapSummer,
	"spring":  gocv.ColormapSpring,
	"cool":    gocv.ColormapCool,
	"hsv":     gocv.ColormapHsv,
	"pink":    gocv.ColormapPink,
	"hot":     gocv.ColormapHot,
	"parula":  gocv.ColormapParula,
}

// Colormaps returns the supported colormap names, sorted.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseColormap resolves a colormap name case-insensitively.
func ParseColormap(name string) (gocv.ColormapTypes, error) {
	cm, ok := colormaps[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown colormap %q", name)
	}
	return cm, nil
}

// Options controls overlay rendering.
type Options struct {
	Alpha    float64
	Colormap string
}

// DefaultOptions returns a 40% JET overlay.
func DefaultOptions() Options {
	return Options{Alpha: DefaultAlpha, Colormap: "jet"}
}

// WithAlpha returns a copy of opts with a custom heat weight.
func (o Options) WithAlpha(alpha float64) Options {
	o.Alpha = alpha
	return o
}

// WithColormap returns a copy of opts with a custom colormap.
func (o Options) WithColormap(name string) Options {
	o.Colormap = name
	return o
}

// Validate checks that alpha lies strictly inside (0,1) and the colormap
// is known.
func (o Options) Validate() error {
	if !(o.Alpha > 0 && o.Alpha < 1) {
		return fmt.Errorf("alpha must be in (0,1), got %g", o.Alpha)
	}
	_, err := ParseColormap(o.Colormap)
	return err
}

// Render blends the colourised activation map over original.
//
// Algorithm:
//  1. Bilinear upsample of the map to the original's size
//  2. Scale to 0-255 and apply the colormap
//  3. Blend alpha*heat + (1-alpha)*original with saturation
//
// Grayscale originals are broadcast to three channels.
func Render(m gradcam.ActivationMap, original image.Image, opts Options) (*image.RGBA, error) {
	if m.Empty() {
		return nil, &gradcam.InputShapeError{Op: "render", Reason: "empty activation map"}
	}
	if original == nil || original.Bounds().Empty() {
		return nil, &gradcam.InputShapeError{Op: "render", Reason: "empty original image"}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cmap, _ := ParseColormap(opts.Colormap)

	w, h := original.Bounds().Dx(), original.Bounds().Dy()

	heat := gocv.NewMatWithSize(m.Rows, m.Cols, gocv.MatTypeCV32F)
	defer heat.Close()
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			heat.SetFloatAt(r, c, float32(m.At(r, c)))
		}
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(heat, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	resized.MultiplyFloat(255)

	heat8 := gocv.NewMat()
	defer heat8.Close()
	resized.ConvertTo(&heat8, gocv.MatTypeCV8U)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(heat8, &colored, cmap)

	orig, err := fdimage.ToMat(original)
	if err != nil {
		return nil, fmt.Errorf("failed to convert original: %w", err)
	}
	defer orig.Close()

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(colored, opts.Alpha, orig, 1-opts.Alpha, 0, &blended)

	return fdimage.MatToRGBA(blended)
}

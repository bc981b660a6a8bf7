package features

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"fakedetect/pkg/colorutil"
)

// tileMeans returns the mean BGR colour of each cell of a grid x grid tiling.
// The grid shrinks to fit images smaller than the grid.
func tileMeans(bgr gocv.Mat, grid int) [][3]float64 {
	w, h := bgr.Cols(), bgr.Rows()
	gx, gy := min(grid, w), min(grid, h)

	means := make([][3]float64, 0, gx*gy)
	for ty := 0; ty < gy; ty++ {
		for tx := 0; tx < gx; tx++ {
			rect := image.Rect(tx*w/gx, ty*h/gy, (tx+1)*w/gx, (ty+1)*h/gy)
			if rect.Empty() {
				continue
			}
			roi := bgr.Region(rect)
			m := roi.Mean()
			roi.Close()
			means = append(means, [3]float64{m.Val1, m.Val2, m.Val3})
		}
	}
	return means
}

// colorConsistency scores how evenly colour is distributed across tiles:
// 1 minus the per-channel variance of the tile means, normalised by scale.
func colorConsistency(means [][3]float64, scale float64) float64 {
	if len(means) < 2 {
		return 1
	}
	var sum float64
	channel := make([]float64, len(means))
	for c := 0; c < 3; c++ {
		for i, m := range means {
			channel[i] = m[c]
		}
		sum += stat.PopVariance(channel, nil)
	}
	return clamp01(1 - min(sum/3/scale, 1))
}

// colorDeviation scores how far the tile colours stray from the overall
// colour of the image, as the mean CIE76 delta E normalised by scale.
func colorDeviation(means [][3]float64, global gocv.Scalar, scale float64) float64 {
	if len(means) == 0 {
		return 0
	}
	ref := colorutil.FromBGR(global.Val1, global.Val2, global.Val3)
	tiles := make([]colorful.Color, len(means))
	for i, m := range means {
		tiles[i] = colorutil.FromBGR(m[0], m[1], m[2])
	}
	return clamp01(colorutil.MeanDeltaE(tiles, ref) / scale)
}

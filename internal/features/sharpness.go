package features

import (
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// laplacianVariance returns the variance of the Laplacian of the smoothed
// image. Crisp, well-printed marks give strong second derivatives; blur and
// re-photographed prints flatten them.
func laplacianVariance(gray gocv.Mat, sigma float64) float64 {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{}, sigma, sigma, gocv.BorderReflect101)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(blurred, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderReflect101)

	return matVariance(lap)
}

// bandPassVariance returns the variance of a difference of Gaussians,
// isolating the fine print structure between the two scales.
func bandPassVariance(gray gocv.Mat, sigmaLo, sigmaHi float64) float64 {
	lo := gocv.NewMat()
	defer lo.Close()
	gocv.GaussianBlur(gray, &lo, image.Point{}, sigmaLo, sigmaLo, gocv.BorderReflect101)

	hi := gocv.NewMat()
	defer hi.Close()
	gocv.GaussianBlur(gray, &hi, image.Point{}, sigmaHi, sigmaHi, gocv.BorderReflect101)

	dog := gocv.NewMat()
	defer dog.Close()
	gocv.Subtract(lo, hi, &dog)

	return matVariance(dog)
}

// meanGradient returns the mean Sobel gradient magnitude of the smoothed
// image in grey levels per pixel.
func meanGradient(gray gocv.Mat, sigma float64) float64 {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{}, sigma, sigma, gocv.BorderReflect101)

	// 3x3 Sobel weights sum to 8; scale back to a per-pixel derivative
	gx := gocv.NewMat()
	defer gx.Close()
	gocv.Sobel(blurred, &gx, gocv.MatTypeCV64F, 1, 0, 3, 0.125, 0, gocv.BorderReflect101)

	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(blurred, &gy, gocv.MatTypeCV64F, 0, 1, 3, 0.125, 0, gocv.BorderReflect101)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)

	data, err := mag.DataPtrFloat64()
	if err != nil || len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// matVariance returns the population variance of a CV64F Mat.
func matVariance(m gocv.Mat) float64 {
	data, err := m.DataPtrFloat64()
	if err != nil || len(data) == 0 {
		return 0
	}
	return stat.PopVariance(data, nil)
}

// Package ocr locates printed text lines on product packaging with Tesseract.
// Line baselines feed the text alignment feature.
package ocr

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"fakedetect/internal/features"
	fdimage "fakedetect/internal/image"
)

// DefaultMinConfidence is the Tesseract word confidence below which words
// are ignored.
const DefaultMinConfidence = 60.0

// Word is one recognised word in original image coordinates.
type Word struct {
	Text       string
	Bounds     image.Rectangle
	Confidence float64

	block, par, line int
}

// Engine provides OCR functionality using Tesseract. A gosseract client is
// not safe for concurrent use, so calls are serialised.
type Engine struct {
	mu            sync.Mutex
	client        *gosseract.Client
	minConfidence float64
}

// NewEngine creates a new OCR engine for the given Tesseract language,
// e.g. "eng".
func NewEngine(lang string) (*Engine, error) {
	client := gosseract.NewClient()

	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Brand names and batch codes aren't dictionary words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{client: client, minConfidence: DefaultMinConfidence}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// SetMinConfidence sets the word confidence threshold (0-100).
func (e *Engine) SetMinConfidence(c float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.minConfidence = c
}

// Words recognises the words in img.
func (e *Engine) Words(img image.Image) ([]Word, error) {
	mat, err := fdimage.ToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	processed, scale := preprocessForOCR(mat)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("ocr engine closed")
	}

	// Packaging text is scattered across the image
	if err := e.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	origin := img.Bounds().Min
	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" || box.Confidence < e.minConfidence {
			continue
		}
		words = append(words, Word{
			Text:       text,
			Bounds:     unscale(box.Box, scale).Add(origin),
			Confidence: box.Confidence,
			block:      box.BlockNum,
			par:        box.ParNum,
			line:       box.LineNum,
		})
	}
	return words, nil
}

// TextLines implements features.LineSource. Each recognised text line
// yields the segment joining its first and last word baselines.
func (e *Engine) TextLines(img image.Image) ([]features.Segment, error) {
	words, err := e.Words(img)
	if err != nil {
		return nil, err
	}
	return baselines(words), nil
}

// baselines groups words by Tesseract line and returns one segment per line
// from the bottom-left of its first word to the bottom-right of its last.
func baselines(words []Word) []features.Segment {
	type key struct{ block, par, line int }
	groups := make(map[key][]Word)
	var order []key
	for _, w := range words {
		k := key{w.block, w.par, w.line}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], w)
	}

	segs := make([]features.Segment, 0, len(order))
	for _, k := range order {
		line := groups[k]
		sort.SliceStable(line, func(i, j int) bool { return line[i].Bounds.Min.X < line[j].Bounds.Min.X })
		first, last := line[0].Bounds, line[len(line)-1].Bounds
		if last.Max.X-first.Min.X <= 0 {
			continue
		}
		segs = append(segs, features.Segment{
			X1: float64(first.Min.X), Y1: float64(first.Max.Y),
			X2: float64(last.Max.X), Y2: float64(last.Max.Y),
		})
	}
	return segs
}

// preprocessForOCR prepares an image for OCR and returns it with the
// upscale factor applied.
func preprocessForOCR(src gocv.Mat) (gocv.Mat, float64) {
	h, w := src.Rows(), src.Cols()

	// Upscale small images for better OCR (target ~150px minimum)
	var scaled gocv.Mat
	scale := 1.0
	minDim := min(h, w)
	if minDim < 150 {
		scale = 150.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(src, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = src.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	// Apply CLAHE (Contrast Limited Adaptive Histogram Equalization)
	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Tesseract expects dark text on a light background
	whiteCount := gocv.CountNonZero(binary)
	whiteRatio := float64(whiteCount) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	return binary, scale
}

// unscale maps a rectangle from the preprocessed image back to the source.
func unscale(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 || scale <= 0 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale),
		int(float64(r.Max.X)/scale), int(float64(r.Max.Y)/scale),
	)
}

// Command explaintest explains one product image, or every image in a
// directory, and prints the verdict, scores, reasons and similarity.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fakedetect/internal/app"
	"fakedetect/internal/config"
	"fakedetect/internal/explain"
	"fakedetect/internal/features"
	fdimage "fakedetect/internal/image"
	"fakedetect/pkg/logger"
)

func main() {
	imagePath := flag.String("image", "", "Path to product image (JPEG, PNG, TIFF, BMP or WebP)")
	dir := flag.String("dir", "", "Explain every image in this directory instead")
	label := flag.String("label", "Original", "Verdict reported by the synthetic classifier")
	confidence := flag.Float64("confidence", 85.5, "Confidence (0-100) reported by the synthetic classifier")
	category := flag.String("category", "", "Reference profile category")
	profiles := flag.String("profiles", "", "Reference profiles YAML")
	out := flag.String("out", "", "Write the heatmap overlay PNG here (a directory with -dir)")
	synthetic := flag.Bool("synthetic", true, "Use the synthetic classifier")
	classifier := flag.String("classifier", "", "Remote classifier URL (implies -synthetic=false)")
	useOCR := flag.Bool("ocr", false, "Use Tesseract baselines for text alignment")
	workers := flag.Int("workers", 4, "Concurrent explanations with -dir")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if (*imagePath == "") == (*dir == "") {
		fmt.Println("Usage: explaintest -image <path> | -dir <path> [-label Fake -confidence 92] [-category shoes] [-profiles profiles.yaml] [-out overlay.png]")
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Classifier.Synthetic = *synthetic && *classifier == ""
	cfg.Classifier.URL = *classifier
	cfg.Classifier.SyntheticLabel = *label
	cfg.Classifier.SyntheticConfidence = *confidence
	cfg.Features.OCR = *useOCR
	cfg.Workers = *workers
	if *profiles != "" {
		cfg.Reference.ProfilesFile = *profiles
		cfg.Reference.RedisURL = ""
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(os.Stderr, level, "text")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Classifier: %s\n", describeSource(cfg))
	fmt.Printf("Profiles:   %s %v (default %s)\n",
		a.ProfileOrigin, a.Explainer.Profiles().Categories(), a.Explainer.Profiles().Fallback())

	var code int
	if *imagePath != "" {
		code = explainOne(ctx, a.Explainer, *imagePath, *category, *out)
	} else {
		code = explainDir(ctx, a.Explainer, *dir, *category, *out, cfg.Workers)
	}
	a.Close()
	os.Exit(code)
}

func describeSource(cfg *config.Config) string {
	if cfg.Classifier.Synthetic {
		return fmt.Sprintf("synthetic (%s %.1f%%)", cfg.Classifier.SyntheticLabel, cfg.Classifier.SyntheticConfidence)
	}
	return cfg.Classifier.URL
}

func explainOne(ctx context.Context, e *explain.Explainer, path, category, out string) int {
	img, err := fdimage.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		return 1
	}
	b := img.Bounds()
	fmt.Printf("Loaded %s: %dx%d pixels\n", filepath.Base(path), b.Dx(), b.Dy())

	start := time.Now()
	res, err := e.Explain(ctx, explain.Request{Image: img, Category: category, Heatmap: out != ""})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Explanation failed: %v\n", err)
		return 1
	}
	printResult(res, time.Since(start))

	if out != "" {
		if err := writeOverlay(res, out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write overlay: %v\n", err)
			return 1
		}
		fmt.Printf("\nOverlay written to %s\n", out)
	}
	return 0
}

func explainDir(ctx context.Context, e *explain.Explainer, dir, category, out string, workers int) int {
	paths, err := fdimage.ListImages(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list images: %v\n", err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "No supported images in %s\n", dir)
		return 1
	}
	if out != "" {
		if err := os.MkdirAll(out, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", out, err)
			return 1
		}
	}

	reqs := make([]explain.Request, 0, len(paths))
	loaded := make([]string, 0, len(paths))
	for _, p := range paths {
		img, err := fdimage.Load(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", p, err)
			continue
		}
		reqs = append(reqs, explain.Request{Image: img, Category: category, Heatmap: out != ""})
		loaded = append(loaded, p)
	}

	fmt.Printf("\nExplaining %d images with %d workers...\n", len(reqs), workers)
	start := time.Now()
	results, err := e.Batch(ctx, reqs, workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Batch aborted: %v\n", err)
		return 1
	}

	fmt.Printf("\n%-32s %-9s %6s %8s  %s\n", "Image", "Label", "Conf", "Overall", "Top reason")
	fmt.Println(strings.Repeat("-", 100))
	failed := 0
	for i, r := range results {
		name := filepath.Base(loaded[i])
		if r.Err != nil {
			failed++
			fmt.Printf("%-32s error: %v\n", name, r.Err)
			continue
		}
		res := r.Result
		top := ""
		if len(res.Reasons) > 0 {
			top = res.Reasons[0]
		}
		fmt.Printf("%-32s %-9s %5.1f%% %8.3f  %s\n",
			name, res.Prediction.Label, res.Prediction.Confidence, res.Similarity.Overall, top)

		if out != "" && res.Heatmap != nil {
			base := strings.TrimSuffix(name, filepath.Ext(name))
			if err := writeOverlay(res, filepath.Join(out, base+"_heatmap.png")); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write overlay for %s: %v\n", name, err)
			}
		}
	}
	fmt.Printf("\nTotal: %d explained, %d failed in %s\n", len(results)-failed, failed, time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return 1
	}
	return 0
}

func printResult(res *explain.Result, elapsed time.Duration) {
	fmt.Printf("\nPrediction: %s (%.1f%%)", res.Prediction.Label, res.Prediction.Confidence)
	if res.Uncertain {
		fmt.Print("  [uncertain]")
	}
	fmt.Println()

	fmt.Printf("\nFeatures:\n")
	for _, name := range features.Names() {
		v, _ := res.Features.Get(name)
		fmt.Printf("  %-22s %6.3f\n", name, v)
	}

	fmt.Printf("\nSimilarity to %q:\n", res.Similarity.Category)
	for _, name := range features.Names() {
		fmt.Printf("  %-22s %6.3f\n", name, res.Similarity.PerFeature[name])
	}
	fmt.Printf("  %-22s %6.3f\n", "overall", res.Similarity.Overall)

	fmt.Printf("\nReasons:\n")
	for i, r := range res.Reasons {
		fmt.Printf("  %d. %s\n", i+1, r)
	}

	if res.HeatmapError != "" {
		fmt.Printf("\nHeatmap unavailable: %s\n", res.HeatmapError)
	}

	stages := make([]string, 0, len(res.Timings))
	for s := range res.Timings {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	fmt.Printf("\nTimings (total %s):\n", elapsed.Round(time.Millisecond))
	for _, s := range stages {
		fmt.Printf("  %-12s %s\n", s, res.Timings[s].Round(time.Microsecond))
	}
}

func writeOverlay(res *explain.Result, path string) error {
	if res.Heatmap == nil {
		return fmt.Errorf("no heatmap: %s", res.HeatmapError)
	}
	return writePNG(res.Heatmap, path)
}

func writePNG(img image.Image, path string) error {
	data, err := fdimage.EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

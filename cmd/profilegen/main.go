// Command profilegen builds a reference profile from a directory of
// authentic product images and writes it to a profiles YAML file or Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"fakedetect/internal/features"
	fdimage "fakedetect/internal/image"
	"fakedetect/internal/reference"
)

func main() {
	dir := flag.String("dir", "", "Directory of authentic product images")
	name := flag.String("name", reference.DefaultCategory, "Profile category name")
	out := flag.String("out", "", "Profiles YAML to write; existing profiles in it are kept")
	scale := flag.Float64("scale", 0, "Similarity scale (0 derives it from the spread of the images)")
	redisURL := flag.String("redis", "", "Save to Redis instead of a file, e.g. redis://localhost:6379/0")
	prefix := flag.String("prefix", "fakedetect:", "Redis key prefix")
	fallback := flag.String("default", "", "Fallback category (defaults to the existing one, else -name)")
	workers := flag.Int("workers", runtime.NumCPU(), "Concurrent extractions")
	flag.Parse()

	if *dir == "" || (*out == "" && *redisURL == "") {
		fmt.Println("Usage: profilegen -dir <images> -name <category> (-out profiles.yaml | -redis <url>) [-scale 0.5]")
		os.Exit(1)
	}

	paths, err := fdimage.ListImages(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list images: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "No supported images in %s\n", *dir)
		os.Exit(1)
	}

	ext, err := features.NewExtractor(features.DefaultParams())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create extractor: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Extracting features from %d images...\n", len(paths))
	scores, failed := extractAll(context.Background(), ext, paths, *workers)
	if len(scores) == 0 {
		fmt.Fprintf(os.Stderr, "No image could be processed\n")
		os.Exit(1)
	}

	profile, spread := buildProfile(*name, scores, *scale)
	if err := profile.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid profile: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nProfile %q from %d images (%d failed):\n", profile.Name, len(scores), failed)
	fmt.Printf("  %-22s %8s %8s\n", "Feature", "Mean", "StdDev")
	for _, f := range features.Names() {
		v, _ := profile.Features.Get(f)
		fmt.Printf("  %-22s %8.4f %8.4f\n", f, v, spread[f])
	}
	fmt.Printf("  Scale: %.4f\n", profile.Scale)

	if *redisURL != "" {
		err = saveRedis(*redisURL, *prefix, *fallback, profile)
	} else {
		err = saveFile(*out, *fallback, profile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save profile: %v\n", err)
		os.Exit(1)
	}
}

// extractAll scores every image, returning the successes and the number of
// failures.
func extractAll(ctx context.Context, ext *features.Extractor, paths []string, workers int) ([]features.Scores, int) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*features.Scores, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			img, err := fdimage.Load(p)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  skip %s: %v\n", filepath.Base(p), err)
				return nil
			}
			s, err := ext.Extract(img)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  skip %s: %v\n", filepath.Base(p), err)
				return nil
			}
			results[i] = &s
			return nil
		})
	}
	_ = g.Wait()

	out := make([]features.Scores, 0, len(paths))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, len(paths) - len(out)
}

// buildProfile averages scores per feature. A non-positive scale is derived
// as three times the largest standard deviation, bounded to [0.05, 1].
func buildProfile(name string, scores []features.Scores, scale float64) (reference.Profile, map[string]float64) {
	names := features.Names()
	means := make(map[string]float64, len(names))
	spread := make(map[string]float64, len(names))
	maxStd := 0.0

	column := make([]float64, len(scores))
	for i, f := range names {
		for j, s := range scores {
			column[j] = s.Values()[i]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if math.IsNaN(std) || math.IsInf(std, 0) {
			std = 0
		}
		means[f] = mean
		spread[f] = std
		maxStd = math.Max(maxStd, std)
	}

	if scale <= 0 {
		scale = math.Min(1, math.Max(0.05, 3*maxStd))
	}
	fs, _ := features.FromMap(means)
	return reference.Profile{Name: strings.TrimSpace(name), Features: fs, Scale: scale}, spread
}

func saveFile(path, fallback string, p reference.Profile) error {
	profiles := []reference.Profile{p}
	if _, err := os.Stat(path); err == nil {
		existing, err := reference.LoadProfiles(path)
		if err != nil {
			return err
		}
		if fallback == "" {
			fallback = existing.Fallback()
		}
		profiles = mergeProfiles(existing.Profiles(), p)
	}
	if fallback == "" {
		fallback = p.Name
	}
	if _, err := reference.NewProfileSet(fallback, profiles...); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := reference.WriteProfiles(f, fallback, profiles...); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("\nWrote %d profiles to %s (default %s)\n", len(profiles), path, fallback)
	return nil
}

func saveRedis(url, prefix, fallback string, p reference.Profile) error {
	loader, err := reference.NewRedisLoader(url, prefix)
	if err != nil {
		return err
	}
	defer loader.Close()

	ctx := context.Background()
	profiles := []reference.Profile{p}
	if existing, err := loader.Load(ctx); err == nil {
		if fallback == "" {
			fallback = existing.Fallback()
		}
		profiles = mergeProfiles(existing.Profiles(), p)
	}
	if fallback == "" {
		fallback = p.Name
	}

	set, err := reference.NewProfileSet(fallback, profiles...)
	if err != nil {
		return err
	}
	if err := loader.Save(ctx, set); err != nil {
		return err
	}
	fmt.Printf("\nSaved %d profiles under %s (default %s)\n", len(profiles), prefix, fallback)
	return nil
}

// mergeProfiles replaces the profile with p's name, or appends p.
func mergeProfiles(existing []reference.Profile, p reference.Profile) []reference.Profile {
	out := make([]reference.Profile, 0, len(existing)+1)
	for _, e := range existing {
		if !strings.EqualFold(e.Name, p.Name) {
			out = append(out, e)
		}
	}
	return append(out, p)
}

package reference

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"fakedetect/internal/features"
)

// profileFile is the on-disk YAML layout:
//
//	default: general
//	profiles:
//	  general:
//	    scale: 1.0
//	    features:
//	      logo_clarity: 0.75
//	      ...
type profileFile struct {
	Default  string                  `yaml:"default"`
	Profiles map[string]profileEntry `yaml:"profiles"`
}

type profileEntry struct {
	Scale    float64            `yaml:"scale,omitempty"`
	Features map[string]float64 `yaml:"features"`
}

// LoadProfiles reads a profile set from a YAML file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	set, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ParseProfiles decodes a profile set from YAML. Every profile must list all
// six features; a missing scale means 1.
func ParseProfiles(data []byte) (*ProfileSet, error) {
	var f profileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("profiles file is empty")
		}
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}

	profiles := make([]Profile, 0, len(f.Profiles))
	for name, entry := range f.Profiles {
		scores, err := features.FromMap(entry.Features)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		scale := entry.Scale
		if scale == 0 {
			scale = 1
		}
		profiles = append(profiles, Profile{Name: name, Features: scores, Scale: scale})
	}
	return NewProfileSet(f.Default, profiles...)
}

// WriteProfiles encodes profiles as YAML with fallback as the default.
func WriteProfiles(w io.Writer, fallback string, profiles ...Profile) error {
	f := profileFile{Default: fallback, Profiles: make(map[string]profileEntry, len(profiles))}
	for _, p := range profiles {
		f.Profiles[p.Name] = profileEntry{Scale: p.Scale, Features: p.Features.Map()}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	return enc.Close()
}

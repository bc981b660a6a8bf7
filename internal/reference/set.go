package reference

import (
	"fmt"
	"sort"
	"strings"
)

// ProfileSet is a read-only collection of profiles keyed by category.
// Lookups for unknown categories return the fallback profile.
type ProfileSet struct {
	profiles map[string]Profile
	fallback string
}

// NewProfileSet builds a set from profiles. fallback must name one of them;
// an empty fallback selects DefaultCategory. When profiles is empty the set
// holds only DefaultProfile.
func NewProfileSet(fallback string, profiles ...Profile) (*ProfileSet, error) {
	if len(profiles) == 0 {
		profiles = []Profile{DefaultProfile()}
	}
	if fallback == "" {
		fallback = DefaultCategory
	}

	set := &ProfileSet{profiles: make(map[string]Profile, len(profiles)), fallback: normalize(fallback)}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		key := normalize(p.Name)
		if _, dup := set.profiles[key]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		set.profiles[key] = p
	}
	if _, ok := set.profiles[set.fallback]; !ok {
		return nil, fmt.Errorf("fallback profile %q not defined", fallback)
	}
	return set, nil
}

// DefaultProfileSet returns a set containing only DefaultProfile.
func DefaultProfileSet() *ProfileSet {
	set, _ := NewProfileSet(DefaultCategory, DefaultProfile())
	return set
}

// Lookup returns the profile for category and whether it matched exactly.
func (s *ProfileSet) Lookup(category string) (Profile, bool) {
	if p, ok := s.profiles[normalize(category)]; ok {
		return p, true
	}
	return s.profiles[s.fallback], false
}

// Comparator returns a comparator for category, falling back when unknown.
func (s *ProfileSet) Comparator(category string) *Comparator {
	p, _ := s.Lookup(category)
	return NewComparator(p)
}

// Fallback returns the fallback category name.
func (s *ProfileSet) Fallback() string {
	return s.fallback
}

// Categories returns the sorted category names.
func (s *ProfileSet) Categories() []string {
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Profiles returns the profiles sorted by name.
func (s *ProfileSet) Profiles() []Profile {
	out := make([]Profile, 0, len(s.profiles))
	for _, name := range s.Categories() {
		out = append(out, s.profiles[normalize(name)])
	}
	return out
}

func normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

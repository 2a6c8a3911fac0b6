package cfg

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPageSize         = 12
	DefaultPaginationRadius = 2
	MaxPageSize             = 100
	MaxPaginationRadius     = 5
)

// FeedFilterFields are the news item fields a feed filter can match.
var FeedFilterFields = []string{"title", "summary", "content", "author", "source", "category", "tags"}

// LoadPreferences reads the preferences file at path. A missing file yields
// the defaults.
func LoadPreferences(path string) (*Preferences, error) {
	prefs := &Preferences{}

	if path == "" {
		return withPreferenceDefaults(prefs), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return withPreferenceDefaults(prefs), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	if err := yaml.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validatePreferences(prefs); err != nil {
		return nil, fmt.Errorf("invalid preferences %s: %w", path, err)
	}

	return withPreferenceDefaults(prefs), nil
}

func withPreferenceDefaults(p *Preferences) *Preferences {
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PaginationRadius == nil {
		r := DefaultPaginationRadius
		p.PaginationRadius = &r
	}
	p.DefaultCategory = strings.TrimSpace(p.DefaultCategory)
	return p
}

func validatePreferences(p *Preferences) error {
	radius := 0
	if p.PaginationRadius != nil {
		radius = *p.PaginationRadius
	}

	ranges := map[string]struct{ value, max int }{
		"page size":         {p.PageSize, MaxPageSize},
		"pagination radius": {radius, MaxPaginationRadius},
	}

	for fieldName, r := range ranges {
		if r.value < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
		if r.value > r.max {
			return fmt.Errorf("%s must be at most %d", fieldName, r.max)
		}
	}

	for i, f := range p.FeedFilters {
		if !slices.Contains(FeedFilterFields, f.Field) {
			return fmt.Errorf("feed filter %d: unknown field %q", i+1, f.Field)
		}
		if len(f.Includes) == 0 && len(f.Excludes) == 0 {
			return fmt.Errorf("feed filter %d: includes or excludes required", i+1)
		}
	}

	return nil
}

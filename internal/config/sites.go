package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/hamed0406/webping/internal/domain"
)

type sitesFile struct {
	Sites []domain.SiteInput `json:"sites"`
}

// DefaultSites is the registry content used when no sites file is given.
func DefaultSites() []domain.SiteInput {
	return []domain.SiteInput{
		{URL: "https://www.google.com", Name: "Google", Interval: 60},
		{URL: "https://www.github.com", Name: "GitHub", Interval: 60},
		{URL: "https://www.example.com", Name: "Example", Interval: 30},
	}
}

// ReadSites loads seed sites from a YAML (or JSON) file of the form
//
//	sites:
//	  - url: https://example.com
//	    name: Example
//	    interval: 30
func ReadSites(path string) ([]domain.SiteInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f sitesFile
	if err := yaml.UnmarshalStrict(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Sites, nil
}

// SeedSites builds validated sites from inputs, assigning ids 1..n in order.
func SeedSites(in []domain.SiteInput, defaultInterval int) ([]domain.Site, error) {
	out := make([]domain.Site, 0, len(in))
	for i, si := range in {
		if si.Interval == 0 {
			si.Interval = defaultInterval
		}
		s, err := domain.NewSite(si)
		if err != nil {
			return nil, fmt.Errorf("site %d (%s): %w", i+1, si.URL, err)
		}
		s.ID = domain.SiteID(i + 1)
		out = append(out, s)
	}
	return out, nil
}

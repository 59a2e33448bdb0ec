package domain

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
)

// Apply returns s with the supplied fields of p merged over it. The id never
// changes. p must already be validated.
func (s Site) Apply(p SitePatch) (Site, error) {
	var overlay Site
	if p.URL != nil {
		overlay.URL = strings.TrimSpace(*p.URL)
	}
	if p.Name != nil {
		overlay.Name = strings.TrimSpace(*p.Name)
	}
	if p.Interval != nil {
		overlay.Interval = *p.Interval
	}

	out := s
	if err := mergo.Merge(&out, overlay, mergo.WithOverride); err != nil {
		return s, fmt.Errorf("merge site %d: %w", s.ID, err)
	}
	out.ID = s.ID
	return out, nil
}

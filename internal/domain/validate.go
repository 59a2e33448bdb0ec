package domain

import (
	"fmt"
	"net/url"
	"strings"
)

var errIntervalTooLarge = fmt.Errorf("%w: interval must be at most %d seconds", ErrValidation, MaxInterval)

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: URL is required", ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: Invalid URL format", ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: Invalid URL format", ErrValidation)
	}
	return nil
}

// NewSite validates in and applies defaults. The id is left for the store.
func NewSite(in SiteInput) (Site, error) {
	if err := ValidateURL(in.URL); err != nil {
		return Site{}, err
	}
	if in.Interval < 0 {
		return Site{}, fmt.Errorf("%w: interval must be a positive number of seconds", ErrValidation)
	}
	if int64(in.Interval) > MaxInterval {
		return Site{}, errIntervalTooLarge
	}
	s := Site{
		URL:      strings.TrimSpace(in.URL),
		Name:     strings.TrimSpace(in.Name),
		Interval: in.Interval,
	}
	if s.Name == "" {
		s.Name = s.URL
	}
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	return s, nil
}

// Validate checks the supplied fields of a patch.
func (p SitePatch) Validate() error {
	if p.URL != nil {
		if err := ValidateURL(*p.URL); err != nil {
			return err
		}
	}
	if p.Interval != nil {
		if *p.Interval < 1 {
			return fmt.Errorf("%w: interval must be a positive number of seconds", ErrValidation)
		}
		if int64(*p.Interval) > MaxInterval {
			return errIntervalTooLarge
		}
	}
	return nil
}

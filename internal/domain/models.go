package domain

import (
	"math"
	"time"
)

// DefaultInterval is the probe interval, in seconds, given to sites that
// don't ask for one.
const DefaultInterval = 60

// MaxInterval is the largest interval, in seconds, that fits in a
// time.Duration.
const MaxInterval int64 = math.MaxInt64 / int64(time.Second)

type SiteID int

type Site struct {
	ID       SiteID `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Interval int    `json:"interval"` // seconds
}

// Period converts the site interval into a duration using unit as one
// interval step (time.Second outside of tests). Products that don't fit in a
// Duration saturate at the largest one instead of wrapping.
func (s Site) Period(unit time.Duration) time.Duration {
	if s.Interval <= 0 || unit <= 0 {
		return 0
	}
	if int64(s.Interval) > math.MaxInt64/int64(unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s.Interval) * unit
}

// SiteInput is the payload accepted when creating a site. Zero values mean
// "not supplied".
type SiteInput struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Interval int    `json:"interval,omitempty"`
}

// SitePatch is a partial update; nil fields keep their current value.
type SitePatch struct {
	URL      *string `json:"url,omitempty"`
	Name     *string `json:"name,omitempty"`
	Interval *int    `json:"interval,omitempty"`
}

type ProbeResult struct {
	SiteID       SiteID    `json:"-"`
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime int64     `json:"responseTime"` // ms
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

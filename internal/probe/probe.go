package probe

import (
	"context"
	"time"

	"github.com/hamed0406/webping/internal/domain"
)

// SuccessThreshold is the first HTTP status treated as a failed probe.
const SuccessThreshold = 400

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 5 * time.Second

// Succeeded reports whether a completed response counts as up.
// A zero status means no response was obtained.
func Succeeded(statusCode int) bool {
	return statusCode > 0 && statusCode < SuccessThreshold
}

// Prober performs one probe against a site. Implementations never return
// transport errors; failures are folded into the result.
type Prober interface {
	Probe(ctx context.Context, site domain.Site) domain.ProbeResult
}

// Recorder receives every probe outcome exactly once.
type Recorder interface {
	Record(url string, responseTime int64, statusCode int, isError bool, errorType string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, int64, int, bool, string) {}

package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// OverlapPolicy decides what happens when a tick comes due while the previous
// probe for the same site is still in flight.
type OverlapPolicy string

const (
	// OverlapAllow starts every tick regardless of in-flight probes.
	OverlapAllow OverlapPolicy = "overlap"
	// OverlapSkip drops a tick while the previous one is still running.
	OverlapSkip OverlapPolicy = "skip"
	// OverlapDelay queues ticks behind the running one, one at a time.
	OverlapDelay OverlapPolicy = "delay"
)

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OverlapAllow, nil
	case OverlapAllow, OverlapSkip, OverlapDelay:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q (want overlap, skip or delay)", s)
	}
}

// wrapper returns the cron job wrapper for the policy, or nil for none.
func (p OverlapPolicy) wrapper(l cron.Logger) cron.JobWrapper {
	switch p {
	case OverlapSkip:
		return cron.SkipIfStillRunning(l)
	case OverlapDelay:
		return cron.DelayIfStillRunning(l)
	default:
		return nil
	}
}

package repo

import (
	"context"
	"time"

	"github.com/hamed0406/webping/internal/domain"
)

// AlertRecord holds the last availability we saw for a site and the last
// time a notification went out for it (used for cooldown).
type AlertRecord struct {
	SiteID     domain.SiteID
	LastUp     bool
	LastSentAt *time.Time
}

// AlertStore keeps alert state between probes.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, id domain.SiteID) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt clears the send time.
	Set(ctx context.Context, id domain.SiteID, up bool, sentAt time.Time) error
	// Forget drops the record of a deleted site.
	Forget(ctx context.Context, id domain.SiteID) error
}

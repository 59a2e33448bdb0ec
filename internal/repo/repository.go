package repo

import (
	"context"

	"github.com/hamed0406/webping/internal/domain"
)

// Ports (interfaces) — the registry is volatile today, but callers only see these.
type SiteStore interface {
	// List returns sites in insertion order.
	List(ctx context.Context) ([]domain.Site, error)
	// Get returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id domain.SiteID) (domain.Site, error)
	// Add assigns s.ID and stores a copy.
	Add(ctx context.Context, s *domain.Site) error
	// Update merges a validated patch; domain.ErrNotFound for unknown ids.
	Update(ctx context.Context, id domain.SiteID, p domain.SitePatch) (domain.Site, error)
	// Delete reports whether a site was removed.
	Delete(ctx context.Context, id domain.SiteID) (bool, error)
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/repo"
)

type Alerts struct {
	mu sync.Mutex
	m  map[domain.SiteID]repo.AlertRecord
}

func NewAlerts() *Alerts {
	return &Alerts{m: make(map[domain.SiteID]repo.AlertRecord)}
}

func (a *Alerts) Get(ctx context.Context, id domain.SiteID) (*repo.AlertRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.m[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (a *Alerts) Set(ctx context.Context, id domain.SiteID, up bool, sentAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	a.m[id] = repo.AlertRecord{SiteID: id, LastUp: up, LastSentAt: ts}
	return nil
}

func (a *Alerts) Forget(ctx context.Context, id domain.SiteID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, id)
	return nil
}

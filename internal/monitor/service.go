// Package monitor couples the site registry with the timer scheduler so that
// every registry mutation and its timer transition happen as one step.
package monitor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/repo"
)

// Timers is the part of the scheduler the service drives.
type Timers interface {
	Start(sites []domain.Site)
	Stop()
	Arm(site domain.Site)
	Replace(site domain.Site)
	Cancel(id domain.SiteID) bool
	Running() bool
	Scheduled() []domain.SiteID
	PingNow(ctx context.Context, site domain.Site) domain.ProbeResult
	PingAll(ctx context.Context, sites []domain.Site) []domain.ProbeResult
}

// SiteForgetter drops per-site state kept outside the registry.
type SiteForgetter interface {
	ForgetSite(ctx context.Context, id domain.SiteID)
}

type Options struct {
	// DefaultInterval, in seconds, is given to new sites that omit one.
	// Zero means domain.DefaultInterval.
	DefaultInterval int
}

// Status is the scheduler state as reported by the API.
type Status struct {
	Running   bool            `json:"running"`
	Scheduled []domain.SiteID `json:"scheduled"`
}

type Service struct {
	log    *zap.Logger
	sites  repo.SiteStore
	timers Timers
	opts   Options

	// mu serializes mutations so readers never see a site without its timer.
	mu      sync.Mutex
	forgets []SiteForgetter
}

func New(log *zap.Logger, sites repo.SiteStore, timers Timers, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = domain.DefaultInterval
	}
	return &Service{log: log, sites: sites, timers: timers, opts: opts}
}

// OnDelete registers f to be told about every deleted site.
func (s *Service) OnDelete(f SiteForgetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgets = append(s.forgets, f)
}

func (s *Service) ListSites(ctx context.Context) ([]domain.Site, error) {
	return s.sites.List(ctx)
}

func (s *Service) AddSite(ctx context.Context, in domain.SiteInput) (domain.Site, error) {
	if in.Interval == 0 {
		in.Interval = s.opts.DefaultInterval
	}
	site, err := domain.NewSite(in)
	if err != nil {
		return domain.Site{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sites.Add(ctx, &site); err != nil {
		return domain.Site{}, fmt.Errorf("add site: %w", err)
	}
	s.timers.Arm(site)
	s.log.Info("site_added",
		zap.Int("site_id", int(site.ID)),
		zap.String("url", site.URL),
		zap.Int("interval", site.Interval),
	)
	return site, nil
}

func (s *Service) UpdateSite(ctx context.Context, id domain.SiteID, p domain.SitePatch) (domain.Site, error) {
	if err := p.Validate(); err != nil {
		return domain.Site{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	site, err := s.sites.Update(ctx, id, p)
	if err != nil {
		return domain.Site{}, err
	}
	s.timers.Replace(site)
	s.log.Info("site_updated",
		zap.Int("site_id", int(site.ID)),
		zap.String("url", site.URL),
		zap.Int("interval", site.Interval),
	)
	return site, nil
}

// DeleteSite removes the site and its timer. It reports false for unknown ids.
func (s *Service) DeleteSite(ctx context.Context, id domain.SiteID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.sites.Delete(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	s.timers.Cancel(id)
	for _, f := range s.forgets {
		f.ForgetSite(ctx, id)
	}
	s.log.Info("site_deleted", zap.Int("site_id", int(id)))
	return true, nil
}

// StartAll (re)arms a timer for every registered site.
func (s *Service) StartAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.sites.List(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	s.timers.Start(list)
	return nil
}

func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers.Stop()
}

// PingOne probes a single site now. Unknown ids yield domain.ErrNotFound.
// The probe is bounded by its own timeout only: a caller that goes away
// must not turn a healthy site into a recorded outage.
func (s *Service) PingOne(ctx context.Context, id domain.SiteID) (domain.ProbeResult, error) {
	site, err := s.sites.Get(ctx, id)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	return s.timers.PingNow(context.WithoutCancel(ctx), site), nil
}

// PingAll probes every registered site concurrently, detached from ctx's
// cancellation like PingOne.
func (s *Service) PingAll(ctx context.Context) ([]domain.ProbeResult, error) {
	list, err := s.sites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return s.timers.PingAll(context.WithoutCancel(ctx), list), nil
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.timers.Running(), Scheduled: s.timers.Scheduled()}
}

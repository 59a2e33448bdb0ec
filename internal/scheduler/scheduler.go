package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/probe"
)

// ResultObserver is handed every probe result for a live site.
// Implementations must not block for long; they run on the probe goroutine.
type ResultObserver interface {
	ObserveResult(r domain.ProbeResult)
}

type Config struct {
	// Unit is the length of one interval step; zero means time.Second.
	Unit time.Duration
	// Overlap is the policy for ticks that come due while a probe is in flight.
	Overlap OverlapPolicy
	// PingAllLimit caps concurrent probes in PingAll; zero means no cap.
	PingAllLimit int
}

// timer is the cancellation token for one site. gen identifies the arm that
// produced it so results from a replaced timer can be told apart.
type timer struct {
	entry cron.EntryID
	gen   uint64
}

// Scheduler owns one recurring timer per site id. The registry decides which
// sites exist; the scheduler only reads the snapshots it is given.
type Scheduler struct {
	log    *zap.Logger
	prober probe.Prober
	cfg    Config
	cron   *cron.Cron

	// ctx is the parent of every periodic probe; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	timers  map[domain.SiteID]timer
	gen     uint64

	obsMu     sync.RWMutex
	observers []ResultObserver
}

func New(log *zap.Logger, prober probe.Prober, cfg Config) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Unit <= 0 {
		cfg.Unit = time.Second
	}
	if cfg.Overlap == "" {
		cfg.Overlap = OverlapAllow
	}

	cl := cronLogger{l: log.Sugar()}
	wrappers := []cron.JobWrapper{cron.Recover(cl)}
	if w := cfg.Overlap.wrapper(cl); w != nil {
		wrappers = append(wrappers, w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:    log,
		prober: prober,
		cfg:    cfg,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(wrappers...)),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[domain.SiteID]timer),
	}
	s.cron.Start()
	return s
}

// AddObserver registers o for every subsequent result.
func (s *Scheduler) AddObserver(o ResultObserver) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Start cancels every armed timer and arms a fresh one for each site.
// Calling it again re-syncs the timer table with the given snapshot.
func (s *Scheduler) Start(sites []domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	for _, site := range sites {
		s.armLocked(site)
	}
	s.running = true
	s.log.Info("scheduler_started", zap.Int("sites", len(sites)))
}

// Stop cancels every timer. In-flight probes run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.running = false
	s.log.Info("scheduler_stopped")
}

// Arm starts the timer for a newly added site. Like Replace it acts whether
// or not Start has been called; Stop clears every timer again.
func (s *Scheduler) Arm(site domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(site.ID)
	s.armLocked(site)
}

// Replace swaps the timer for site.ID for one built from the new snapshot.
// The old timer is removed before the new one is armed, so the two cadences
// never run side by side.
func (s *Scheduler) Replace(site domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(site.ID)
	s.armLocked(site)
	s.log.Info("timer_replaced", zap.Int("site_id", int(site.ID)), zap.Int("interval", site.Interval))
}

// Cancel removes the timer for id and reports whether one was armed.
// No tick for id starts after Cancel returns.
func (s *Scheduler) Cancel(id domain.SiteID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(id)
}

// Running reports whether Start was called more recently than Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Scheduled returns the ids with an armed timer, ascending.
func (s *Scheduler) Scheduled() []domain.SiteID {
	s.mu.Lock()
	ids := make([]domain.SiteID, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PingNow probes site once, outside of its recurring timer.
func (s *Scheduler) PingNow(ctx context.Context, site domain.Site) domain.ProbeResult {
	res := s.prober.Probe(ctx, site)
	s.notify(res)
	return res
}

// PingAll probes every site concurrently and returns results in input order.
func (s *Scheduler) PingAll(ctx context.Context, sites []domain.Site) []domain.ProbeResult {
	out := make([]domain.ProbeResult, len(sites))
	var g errgroup.Group
	if s.cfg.PingAllLimit > 0 {
		g.SetLimit(s.cfg.PingAllLimit)
	}
	for i, site := range sites {
		g.Go(func() error {
			out[i] = s.PingNow(ctx, site)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Close stops all timers and waits for in-flight periodic probes until ctx
// expires, after which they are cancelled.
func (s *Scheduler) Close(ctx context.Context) error {
	s.Stop()
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// armLocked must be called with mu held and no timer armed for site.ID.
func (s *Scheduler) armLocked(site domain.Site) {
	s.gen++
	gen := s.gen
	snapshot := site
	// Period saturates instead of overflowing, so only a zero interval is
	// left to guard.
	every := site.Period(s.cfg.Unit)
	if every <= 0 {
		every = domain.DefaultInterval * s.cfg.Unit
	}
	entry := s.cron.Schedule(period(every), cron.FuncJob(func() {
		s.tick(snapshot, gen)
	}))
	s.timers[site.ID] = timer{entry: entry, gen: gen}
	s.log.Info("timer_armed",
		zap.Int("site_id", int(site.ID)),
		zap.String("name", site.Name),
		zap.Int("interval", site.Interval),
	)
}

func (s *Scheduler) cancelLocked(id domain.SiteID) bool {
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	s.cron.Remove(t.entry)
	delete(s.timers, id)
	s.log.Info("timer_cancelled", zap.Int("site_id", int(id)))
	return true
}

func (s *Scheduler) stopLocked() {
	for id := range s.timers {
		s.cancelLocked(id)
	}
}

func (s *Scheduler) tick(site domain.Site, gen uint64) {
	res := s.prober.Probe(s.ctx, site)
	if !s.current(site.ID, gen) {
		// Timer was cancelled or replaced while the probe was in flight.
		s.log.Debug("stale_tick_result", zap.Int("site_id", int(site.ID)))
		return
	}
	s.notify(res)
}

func (s *Scheduler) current(id domain.SiteID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	return ok && t.gen == gen
}

func (s *Scheduler) notify(res domain.ProbeResult) {
	s.obsMu.RLock()
	obs := s.observers
	s.obsMu.RUnlock()
	for _, o := range obs {
		o.ObserveResult(res)
	}
}

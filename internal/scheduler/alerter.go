package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	// Buffer is the number of results queued before new ones are dropped.
	Buffer int
}

// Alerter sends a notification when a site's availability flips. It consumes
// results asynchronously so probes never wait on the notifier.
type Alerter struct {
	log      *zap.Logger
	alertDB  repo.AlertStore
	notifier interface {
		Send(context.Context, string, string) error
	}
	cfg   AlerterConfig
	queue chan domain.ProbeResult
	now   func() time.Time

	// Site ids are never reused, so a forgotten id stays forgotten.
	mu        sync.Mutex
	forgotten map[domain.SiteID]struct{}
}

func NewAlerter(
	log *zap.Logger,
	alertDB repo.AlertStore,
	notifier interface {
		Send(context.Context, string, string) error
	},
	cfg AlerterConfig,
) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Alerter{
		log:      log,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		queue:     make(chan domain.ProbeResult, cfg.Buffer),
		now:       time.Now,
		forgotten: make(map[domain.SiteID]struct{}),
	}
}

// ObserveResult implements ResultObserver.
func (a *Alerter) ObserveResult(r domain.ProbeResult) {
	select {
	case a.queue <- r:
	default:
		a.log.Warn("alert_queue_full", zap.Int("site_id", int(r.SiteID)), zap.String("url", r.URL))
	}
}

// ForgetSite drops alert state for a deleted site. Results for id that are
// still queued or in flight are ignored from now on.
func (a *Alerter) ForgetSite(ctx context.Context, id domain.SiteID) {
	a.mu.Lock()
	a.forgotten[id] = struct{}{}
	a.mu.Unlock()
	if err := a.alertDB.Forget(ctx, id); err != nil {
		a.log.Warn("alert_forget_error", zap.Int("site_id", int(id)), zap.Error(err))
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-a.queue:
			if err := a.handle(ctx, r); err != nil {
				a.log.Warn("alert_evaluate_error", zap.Int("site_id", int(r.SiteID)), zap.Error(err))
			}
		}
	}
}

func (a *Alerter) isForgotten(id domain.SiteID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.forgotten[id]
	return ok
}

// handle evaluates r unless its site was deleted. A delete that lands while
// r is being evaluated is caught by the second check, which removes the
// record evaluate may have just written.
func (a *Alerter) handle(ctx context.Context, r domain.ProbeResult) error {
	if a.isForgotten(r.SiteID) {
		a.log.Debug("alert_result_dropped", zap.Int("site_id", int(r.SiteID)))
		return nil
	}
	err := a.evaluate(ctx, r)
	if a.isForgotten(r.SiteID) {
		return a.alertDB.Forget(ctx, r.SiteID)
	}
	return err
}

func (a *Alerter) evaluate(ctx context.Context, r domain.ProbeResult) error {
	rec, err := a.alertDB.Get(ctx, r.SiteID)
	if err != nil {
		return err
	}
	now := a.now()

	// Has the up/down state changed compared to what we last recorded?
	// The first result for a site counts as a change.
	stateChanged := rec == nil || rec.LastUp != r.Success

	// Cooldown only matters for DOWN alerts (suppresses noisy repeats).
	cooled := true
	if rec != nil && rec.LastSentAt != nil {
		cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
	}

	downAlert := stateChanged && !r.Success && cooled
	// A site seen up for the first time isn't a recovery.
	recoveryAlert := stateChanged && rec != nil && r.Success && a.cfg.AlertOnRecovery

	if downAlert || recoveryAlert {
		title := "🔴 Site DOWN: " + r.Name
		if r.Success {
			title = "🟢 Site RECOVERED: " + r.Name
		}

		httpTxt := "n/a"
		if r.StatusCode != 0 {
			httpTxt = fmt.Sprintf("%d", r.StatusCode)
		}
		reason := r.Error
		if reason == "" {
			reason = "-"
		}
		text := fmt.Sprintf(
			"URL: %s\nHTTP: %s\nLatency: %d ms\nError: %s\nChecked: %s",
			r.URL, httpTxt, r.ResponseTime, reason, r.Timestamp.Format(time.RFC3339),
		)

		// Best-effort send; record the attempt either way so a broken
		// webhook doesn't retry on every probe.
		if err := a.notifier.Send(ctx, title, text); err != nil {
			a.log.Warn("alert_send_error", zap.Int("site_id", int(r.SiteID)), zap.Error(err))
		} else {
			a.log.Info("alert_sent", zap.Int("site_id", int(r.SiteID)), zap.Bool("up", r.Success))
		}
		return a.alertDB.Set(ctx, r.SiteID, r.Success, now)
	}

	// State changed but nothing was sent (cooldown, recovery alerts off, or
	// first sighting): record the new state without a send time.
	if stateChanged {
		return a.alertDB.Set(ctx, r.SiteID, r.Success, time.Time{})
	}
	return nil
}

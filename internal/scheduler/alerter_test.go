package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/repo/memory"
)

// ---- shared helpers ----

func result(id domain.SiteID, up bool, code int) domain.ProbeResult {
	r := domain.ProbeResult{
		SiteID:       id,
		URL:          "https://site.test",
		Name:         "site",
		StatusCode:   code,
		ResponseTime: 42,
		Timestamp:    time.Now(),
		Success:      up,
	}
	if !up && code == 0 {
		r.Error = "connection refused"
	}
	return r
}

type memNotifier struct {
	mu     sync.Mutex
	titles []string
	texts  []string
	err    error
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
	m.texts = append(m.texts, text)
	return m.err
}

func (m *memNotifier) n() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.titles)
}

// ---- tests ----

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nil, memory.NewAlerts(), nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        time.Minute,
	})
	ctx := context.Background()

	if err := al.evaluate(ctx, result(1, false, 500)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 1 || !strings.Contains(nt.titles[0], "DOWN") {
		t.Fatalf("want 1 down alert, got %v", nt.titles)
	}
	if !strings.Contains(nt.texts[0], "HTTP: 500") {
		t.Fatalf("alert body missing status: %q", nt.texts[0])
	}

	// same DOWN again -> no state change, no alert
	if err := al.evaluate(ctx, result(1, false, 500)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 1 {
		t.Fatalf("want repeat suppressed, got %d", nt.n())
	}

	// flip to UP -> recovery alert
	if err := al.evaluate(ctx, result(1, true, 200)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 2 || !strings.Contains(nt.titles[1], "RECOVERED") {
		t.Fatalf("want recovery alert, got %v", nt.titles)
	}

	// flapping back DOWN inside the cooldown is suppressed
	if err := al.evaluate(ctx, result(1, false, 0)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 2 {
		t.Fatalf("cooldown should suppress flap, got %d", nt.n())
	}
}

func TestAlerter_CooldownExpires(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nil, memory.NewAlerts(), nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        time.Minute,
	})
	now := time.Now()
	al.now = func() time.Time { return now }
	ctx := context.Background()

	_ = al.evaluate(ctx, result(1, false, 503))
	_ = al.evaluate(ctx, result(1, true, 200))
	now = now.Add(2 * time.Minute)
	_ = al.evaluate(ctx, result(1, false, 503))

	if nt.n() != 3 {
		t.Fatalf("want down, recovery, down; got %v", nt.titles)
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nil, memory.NewAlerts(), nt, AlerterConfig{})
	ctx := context.Background()

	// first time UP (no previous) -> nothing to recover from
	if err := al.evaluate(ctx, result(2, true, 200)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 0 {
		t.Fatalf("unexpected alert: %d", nt.n())
	}

	// go DOWN -> should alert
	if err := al.evaluate(ctx, result(2, false, 500)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 1 {
		t.Fatalf("want one down alert, got %d", nt.n())
	}

	// back UP with recovery off -> silent
	if err := al.evaluate(ctx, result(2, true, 200)); err != nil {
		t.Fatal(err)
	}
	if nt.n() != 1 {
		t.Fatalf("recovery alert sent while disabled")
	}
}

func TestAlerter_SendFailureStillRecordsState(t *testing.T) {
	nt := &memNotifier{err: errors.New("webhook down")}
	alerts := memory.NewAlerts()
	al := NewAlerter(nil, alerts, nt, AlerterConfig{Cooldown: time.Minute})
	ctx := context.Background()

	if err := al.evaluate(ctx, result(3, false, 0)); err != nil {
		t.Fatal(err)
	}
	rec, err := alerts.Get(ctx, 3)
	if err != nil || rec == nil {
		t.Fatalf("state not recorded: %v %v", rec, err)
	}
	if rec.LastUp || rec.LastSentAt == nil {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestAlerter_RunDrainsQueue(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nil, memory.NewAlerts(), nt, AlerterConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- al.Run(ctx) }()

	al.ObserveResult(result(4, false, 500))
	al.ObserveResult(result(5, false, 500))

	deadline := time.Now().Add(time.Second)
	for nt.n() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if nt.n() != 2 {
		t.Fatalf("want 2 alerts, got %d", nt.n())
	}
}

func TestAlerter_ForgetSiteResetsState(t *testing.T) {
	nt := &memNotifier{}
	alerts := memory.NewAlerts()
	al := NewAlerter(nil, alerts, nt, AlerterConfig{Cooldown: time.Hour})
	ctx := context.Background()

	_ = al.evaluate(ctx, result(6, false, 500))
	al.ForgetSite(ctx, 6)
	if rec, _ := alerts.Get(ctx, 6); rec != nil {
		t.Fatalf("record should be gone: %+v", rec)
	}
}

func TestAlerter_IgnoresResultsAfterForget(t *testing.T) {
	nt := &memNotifier{}
	alerts := memory.NewAlerts()
	al := NewAlerter(nil, alerts, nt, AlerterConfig{Cooldown: time.Hour})
	ctx := context.Background()

	// Queued before the delete, handled after it.
	al.ObserveResult(result(9, false, 0))
	al.ForgetSite(ctx, 9)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = al.Run(runCtx)
	}()
	deadline := time.Now().Add(time.Second)
	for len(al.queue) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := al.handle(ctx, result(9, false, 500)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	cancel()
	<-done

	if rec, _ := alerts.Get(ctx, 9); rec != nil {
		t.Fatalf("deleted site got its alert state back: %+v", rec)
	}
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if len(nt.titles) != 0 {
		t.Fatalf("no alert may be sent for a deleted site, got %v", nt.titles)
	}
}

// A delete that races with evaluation must not leave a record behind.
func TestAlerter_ForgetDuringEvaluate(t *testing.T) {
	alerts := memory.NewAlerts()
	ctx := context.Background()
	var al *Alerter
	nt := &forgettingNotifier{forget: func() { al.ForgetSite(ctx, 4) }}
	al = NewAlerter(nil, alerts, nt, AlerterConfig{Cooldown: time.Hour})

	if err := al.handle(ctx, result(4, false, 503)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rec, _ := alerts.Get(ctx, 4); rec != nil {
		t.Fatalf("record written after delete survived: %+v", rec)
	}
}

// forgettingNotifier deletes the site while the alert is being sent.
type forgettingNotifier struct{ forget func() }

func (f *forgettingNotifier) Send(context.Context, string, string) error {
	f.forget()
	return nil
}

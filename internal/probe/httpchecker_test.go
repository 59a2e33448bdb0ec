package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/webping/internal/domain"
)

type recordCall struct {
	url        string
	ms         int64
	statusCode int
	isError    bool
	errorType  string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordCall
}

func (f *fakeRecorder) Record(url string, ms int64, statusCode int, isError bool, errorType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordCall{url, ms, statusCode, isError, errorType})
}

func (f *fakeRecorder) only(t *testing.T) recordCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) != 1 {
		t.Fatalf("want exactly one Record call, got %d", len(f.calls))
	}
	return f.calls[0]
}

func site(url string) domain.Site {
	return domain.Site{ID: 1, URL: url, Name: "test", Interval: 60}
}

func TestHTTPChecker_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("want GET, got %s", r.Method)
		}
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	rec := &fakeRecorder{}
	chk := NewHTTPChecker(2*time.Second, rec, nil)
	out := chk.Probe(context.Background(), site(s.URL))
	if !out.Success || out.StatusCode != 200 || out.Error != "" {
		t.Fatalf("want success 200, got %+v", out)
	}
	if out.URL != s.URL || out.Name != "test" || out.SiteID != 1 {
		t.Fatalf("identity not copied: %+v", out)
	}
	if out.ResponseTime < 0 || out.Timestamp.IsZero() {
		t.Fatalf("timing not populated: %+v", out)
	}

	c := rec.only(t)
	if c.isError || c.statusCode != 200 || c.errorType != "" || c.url != s.URL {
		t.Fatalf("unexpected record: %+v", c)
	}
}

func TestHTTPChecker_RedirectStatusCountsAsUp(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second, nil, nil).Probe(context.Background(), site(s.URL))
	if !out.Success || out.StatusCode != 304 {
		t.Fatalf("304 is below the threshold, got %+v", out)
	}
}

func TestHTTPChecker_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	rec := &fakeRecorder{}
	out := NewHTTPChecker(2*time.Second, rec, nil).Probe(context.Background(), site(s.URL))
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode != 500 {
		t.Fatalf("want status 500, got %d", out.StatusCode)
	}
	if out.Error != "" {
		t.Fatalf("a received status is not a transport error, got %q", out.Error)
	}

	c := rec.only(t)
	if !c.isError || c.statusCode != 500 || c.errorType != "HTTP_500" {
		t.Fatalf("unexpected record: %+v", c)
	}
}

func TestHTTPChecker_TimeoutSetsStatusZero(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(200)
	}))
	defer s.Close()
	defer close(release)

	rec := &fakeRecorder{}
	chk := NewHTTPChecker(50*time.Millisecond, rec, nil)
	start := time.Now()
	out := chk.Probe(context.Background(), site(s.URL))
	if time.Since(start) > time.Second {
		t.Fatalf("probe should give up at its timeout")
	}
	if out.Success || out.StatusCode != 0 || out.Error == "" {
		t.Fatalf("want transport failure, got %+v", out)
	}
	if out.ResponseTime < 40 {
		t.Fatalf("response time should cover the wait, got %d", out.ResponseTime)
	}
	if c := rec.only(t); c.errorType != ErrTypeTimeout || c.statusCode != 0 || !c.isError {
		t.Fatalf("unexpected record: %+v", c)
	}
}

func TestHTTPChecker_UnreachableHost(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	rec := &fakeRecorder{}
	out := NewHTTPChecker(DefaultTimeout, rec, nil).Probe(context.Background(), site("http://"+addr))
	if out.Success || out.StatusCode != 0 || out.Error == "" {
		t.Fatalf("want transport failure, got %+v", out)
	}
	if c := rec.only(t); c.errorType != ErrTypeRefused {
		t.Fatalf("want %s, got %+v", ErrTypeRefused, c)
	}
}

func TestSucceeded(t *testing.T) {
	cases := map[int]bool{0: false, 1: true, 200: true, 399: true, 400: false, 404: false, 503: false}
	for code, want := range cases {
		if got := Succeeded(code); got != want {
			t.Fatalf("Succeeded(%d)=%v want %v", code, got, want)
		}
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSink_RecordSuccess(t *testing.T) {
	s := New(zap.NewNop())
	s.Record("https://a.test", 120, 200, false, "")

	assert.Equal(t, 120.0, testutil.ToFloat64(s.pingDuration.WithLabelValues("https://a.test")))
	assert.Equal(t, 200.0, testutil.ToFloat64(s.pingStatus.WithLabelValues("https://a.test")))
	assert.Equal(t, 100.0, testutil.ToFloat64(s.pingAvailability.WithLabelValues("https://a.test")))
	assert.Equal(t, 0, testutil.CollectAndCount(s.pingErrors))
}

func TestSink_RecordErrorIsLastValueWins(t *testing.T) {
	s := New(zap.NewNop())
	s.Record("https://a.test", 50, 200, false, "")
	s.Record("https://a.test", 5000, 0, true, "TIMEOUT")

	assert.Equal(t, 5000.0, testutil.ToFloat64(s.pingDuration.WithLabelValues("https://a.test")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.pingStatus.WithLabelValues("https://a.test")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.pingAvailability.WithLabelValues("https://a.test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.pingErrors.WithLabelValues("https://a.test", "TIMEOUT")))

	s.Record("https://a.test", 80, 204, false, "")
	assert.Equal(t, 100.0, testutil.ToFloat64(s.pingAvailability.WithLabelValues("https://a.test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.pingErrors.WithLabelValues("https://a.test", "TIMEOUT")),
		"error counter is cumulative")
}

func TestSink_ErrorTypeFallsBackToUnknown(t *testing.T) {
	s := New(zap.NewNop())
	s.Record("https://a.test", 1, 0, true, "")
	s.Record("https://a.test", 1, 0, true, "")
	assert.Equal(t, 2.0, testutil.ToFloat64(s.pingErrors.WithLabelValues("https://a.test", UnknownErrorType)))
}

func TestSink_InvalidLabelIsLoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(zap.New(core))

	require.NotPanics(t, func() {
		s.Record("https://bad\xff.test", 1, 500, true, "HTTP_500")
	})
	require.Equal(t, 1, logs.FilterMessage("metrics_record_failed").Len())
}

func TestSink_ConcurrentRecordsSameURL(t *testing.T) {
	s := New(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Record("https://a.test", int64(i), 500, true, "HTTP_500")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100.0, testutil.ToFloat64(s.pingErrors.WithLabelValues("https://a.test", "HTTP_500")))
	assert.Equal(t, 500.0, testutil.ToFloat64(s.pingStatus.WithLabelValues("https://a.test")))
}

func TestSink_ObserveHTTPAndHandler(t *testing.T) {
	s := New(zap.NewNop())
	s.ObserveHTTP("GET", "/api/sites", 200, 15*time.Millisecond)
	s.Record("https://a.test", 10, 200, false, "")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.httpRequests.WithLabelValues("GET", "/api/sites", "200")))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, name := range []string{
		"http_ping_duration_ms",
		"http_request_availability_percent",
		"http_requests_total",
		"http_request_duration_ms_bucket",
		"web_ping_api_go_goroutines",
	} {
		assert.True(t, strings.Contains(text, name), "exposition should contain %s", name)
	}
}

// Package metrics is the probe metrics sink and the Prometheus registry that
// backs the /metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UnknownErrorType labels errors whose cause wasn't classified.
const UnknownErrorType = "unknown"

// Sink keeps last-value gauges per URL plus a cumulative error counter.
type Sink struct {
	log      *zap.Logger
	registry *prometheus.Registry

	pingDuration     *prometheus.GaugeVec
	pingStatus       *prometheus.GaugeVec
	pingAvailability *prometheus.GaugeVec
	pingErrors       *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	prometheus.WrapRegistererWithPrefix("web_ping_api_", reg).MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Sink{
		log:      log,
		registry: reg,
		pingDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_ping_duration_ms",
			Help: "HTTP ping request duration in milliseconds",
		}, []string{"url"}),
		pingStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_request_status",
			Help: "HTTP ping request status code",
		}, []string{"url"}),
		pingAvailability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_request_availability_percent",
			Help: "HTTP ping request availability percentage",
		}, []string{"url"}),
		pingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of HTTP ping request errors",
		}, []string{"url", "error_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 300, 500, 1000, 2000, 5000},
		}, []string{"method", "route", "status_code"}),
	}
	reg.MustRegister(
		s.pingDuration, s.pingStatus, s.pingAvailability, s.pingErrors,
		s.httpRequests, s.httpDuration,
	)
	return s
}

// Record stores the outcome of one probe. It never fails the caller: any
// problem is logged and dropped.
func (s *Sink) Record(url string, responseTime int64, statusCode int, isError bool, errorType string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("metrics_record_failed", zap.String("url", url), zap.Any("panic", r))
		}
	}()
	if err := s.record(url, responseTime, statusCode, isError, errorType); err != nil {
		s.log.Error("metrics_record_failed", zap.String("url", url), zap.Error(err))
	}
}

func (s *Sink) record(url string, responseTime int64, statusCode int, isError bool, errorType string) error {
	d, err := s.pingDuration.GetMetricWithLabelValues(url)
	if err != nil {
		return fmt.Errorf("duration gauge: %w", err)
	}
	st, err := s.pingStatus.GetMetricWithLabelValues(url)
	if err != nil {
		return fmt.Errorf("status gauge: %w", err)
	}
	av, err := s.pingAvailability.GetMetricWithLabelValues(url)
	if err != nil {
		return fmt.Errorf("availability gauge: %w", err)
	}

	d.Set(float64(responseTime))
	st.Set(float64(statusCode))
	if !isError {
		av.Set(100)
		return nil
	}
	av.Set(0)

	if errorType == "" {
		errorType = UnknownErrorType
	}
	c, err := s.pingErrors.GetMetricWithLabelValues(url, errorType)
	if err != nil {
		return fmt.Errorf("error counter: %w", err)
	}
	c.Inc()
	return nil
}

// ObserveHTTP accounts one request served by the API itself.
func (s *Sink) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	s.httpRequests.WithLabelValues(method, route, code).Inc()
	s.httpDuration.WithLabelValues(method, route, code).Observe(float64(elapsed) / float64(time.Millisecond))
}

// Registry is exposed for tests and for wiring extra collectors.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// Handler serves the text exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(s.log),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/webping/internal/domain"
)

// maxBodyDrain caps how much of a response body is read before the
// connection is handed back to the pool.
const maxBodyDrain = 1 << 20

type HTTPChecker struct {
	Client   *http.Client
	Timeout  time.Duration
	Recorder Recorder
	Logger   *zap.Logger
}

func NewHTTPChecker(timeout time.Duration, rec Recorder, log *zap.Logger) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPChecker{
		Client:   &http.Client{Timeout: timeout},
		Timeout:  timeout,
		Recorder: rec,
		Logger:   log,
	}
}

// Probe issues a single GET. Every status code is a completed response; only
// transport failures produce a result with StatusCode 0 and Error set.
func (h *HTTPChecker) Probe(ctx context.Context, site domain.Site) domain.ProbeResult {
	res := domain.ProbeResult{SiteID: site.ID, URL: site.URL, Name: site.Name}
	h.Logger.Debug("probe_start", zap.Int("site_id", int(site.ID)), zap.String("url", site.URL))

	start := time.Now()
	code, err := h.get(ctx, site.URL)
	res.ResponseTime = time.Since(start).Milliseconds()
	res.Timestamp = time.Now().UTC()

	if err != nil {
		kind := Classify(err)
		res.Error = err.Error()
		h.Logger.Warn("probe_failed",
			zap.Int("site_id", int(site.ID)),
			zap.String("url", site.URL),
			zap.String("error_type", kind),
			zap.Int64("response_ms", res.ResponseTime),
			zap.Error(err),
		)
		h.Recorder.Record(site.URL, res.ResponseTime, 0, true, kind)
		return res
	}

	res.StatusCode = code
	res.Success = Succeeded(code)
	errType := ""
	if !res.Success {
		errType = fmt.Sprintf("HTTP_%d", code)
	}
	h.Logger.Info("probe_completed",
		zap.Int("site_id", int(site.ID)),
		zap.String("url", site.URL),
		zap.Int("status", code),
		zap.Bool("success", res.Success),
		zap.Int64("response_ms", res.ResponseTime),
	)
	h.Recorder.Record(site.URL, res.ResponseTime, code, !res.Success, errType)
	return res
}

func (h *HTTPChecker) get(ctx context.Context, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Status is already known; a body read error doesn't change the outcome.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
	return resp.StatusCode, nil
}

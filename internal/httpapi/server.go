package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/webping/internal/domain"
	apimw "github.com/hamed0406/webping/internal/httpapi/middleware"
	"github.com/hamed0406/webping/internal/monitor"
)

// Sites is the registry and scheduler surface the API drives.
type Sites interface {
	ListSites(ctx context.Context) ([]domain.Site, error)
	AddSite(ctx context.Context, in domain.SiteInput) (domain.Site, error)
	UpdateSite(ctx context.Context, id domain.SiteID, p domain.SitePatch) (domain.Site, error)
	DeleteSite(ctx context.Context, id domain.SiteID) (bool, error)
	StartAll(ctx context.Context) error
	StopAll()
	PingOne(ctx context.Context, id domain.SiteID) (domain.ProbeResult, error)
	PingAll(ctx context.Context) ([]domain.ProbeResult, error)
	Status() monitor.Status
}

// Metrics serves the exposition endpoint and observes API traffic.
type Metrics interface {
	apimw.HTTPObserver
	Handler() http.Handler
}

type Options struct {
	AllowedOrigins []string // empty allows any origin
	RateLimitRPM   int
	RateLimitBurst int
	Metrics        Metrics      // optional
	Stream         http.Handler // optional websocket endpoint
}

type Server struct {
	Logger *zap.Logger
	Sites  Sites
	opts   Options
}

func NewServer(l *zap.Logger, sites Sites, opts Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Sites: sites, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, s.logRequests, chimw.Recoverer, apimw.SecurityHeaders)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// The stream stays open for the life of the client, so it is kept out
	// of the request latency metrics.
	if s.opts.Stream != nil {
		r.Method(http.MethodGet, "/ws", s.opts.Stream)
	}

	r.Group(func(r chi.Router) {
		if s.opts.Metrics != nil {
			r.Use(apimw.Metrics(s.opts.Metrics))
			r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
		}
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(apimw.RateLimit(s.opts.RateLimitRPM, s.opts.RateLimitBurst))

			r.Get("/sites", s.handleListSites)
			r.Post("/sites", s.handleAddSite)
			r.Put("/sites/{id}", s.handleUpdateSite)
			r.Delete("/sites/{id}", s.handleDeleteSite)

			r.Get("/ping", s.handlePingAll)
			r.Get("/ping/status", s.handleStatus)
			r.Get("/ping/{id}", s.handlePingOne)
			r.Post("/ping/start", s.handleStart)
			r.Post("/ping/stop", s.handleStop)
		})
	})

	return r
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.Sites.ListSites(r.Context())
	if err != nil {
		s.serverError(w, "list_sites_error", err)
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var in domain.SiteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	site, err := s.Sites.AddSite(r.Context(), in)
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	case err != nil:
		s.serverError(w, "add_site_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	id, ok := siteID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Site not found")
		return
	}
	var p domain.SitePatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	// Empty values mean "keep the current one".
	if p.URL != nil && strings.TrimSpace(*p.URL) == "" {
		p.URL = nil
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		p.Name = nil
	}
	if p.Interval != nil && *p.Interval == 0 {
		p.Interval = nil
	}

	site, err := s.Sites.UpdateSite(r.Context(), id, p)
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Site not found")
		return
	case err != nil:
		s.serverError(w, "update_site_error", err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, ok := siteID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Site not found")
		return
	}
	deleted, err := s.Sites.DeleteSite(r.Context(), id)
	if err != nil {
		s.serverError(w, "delete_site_error", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Site not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Site deleted"})
}

func (s *Server) handlePingAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.Sites.PingAll(r.Context())
	if err != nil {
		s.serverError(w, "ping_all_error", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePingOne(w http.ResponseWriter, r *http.Request) {
	id, ok := siteID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Site not found")
		return
	}
	res, err := s.Sites.PingOne(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Site not found")
		return
	case err != nil:
		s.serverError(w, "ping_site_error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Sites.StartAll(r.Context()); err != nil {
		s.serverError(w, "start_pings_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Periodic pings started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Sites.StopAll()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Periodic pings stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sites.Status())
}

func (s *Server) serverError(w http.ResponseWriter, event string, err error) {
	s.Logger.Error(event, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Server error")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// siteID parses the {id} path parameter. Anything that isn't a whole number
// can never match a site.
func siteID(r *http.Request) (domain.SiteID, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, false
	}
	return domain.SiteID(n), true
}

// validationMessage strips the sentinel prefix so clients see only the detail.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package http serves the cashflow JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashflow/internal/datasource"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	DefaultRequestTimeout = 7 * time.Second
	maxBodyBytes          = 1 << 20
)

// Deps are the backend and services the API serves from.
type Deps struct {
	Store     datasource.Store
	Forecasts *services.ForecastService
	Dashboard *services.DashboardService
	Alerts    *services.AlertDispatcher
}

type Options struct {
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Logger             *log.Logger
	// TrustedProxies are CIDRs whose forwarded headers name the client.
	TrustedProxies []string
}

type Server struct {
	http.Server
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// pinger is implemented by backends that can report readiness.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
	}
	h := &handlers{deps: deps, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", h.handleReady)

	r.Route("/api/businesses", func(r chi.Router) {
		r.Use(s.limiter.Middleware(detector.ExtractClientIP, nil))

		r.Get("/", h.listBusinesses)
		r.Post("/", h.createBusiness)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getBusiness)
			r.Get("/transactions", h.listTransactions)
			r.Post("/transactions", h.createTransaction)
			r.Get("/categories", h.listCategories)
			r.Post("/categories", h.createCategory)
			r.Get("/forecasts", h.listForecasts)
			r.Post("/forecasts", h.submitForecast)
			r.Post("/forecasts/project", h.projectForecast)
			r.Get("/dashboard", h.dashboard)
			r.Get("/risk-scores", h.listRiskScores)
			r.Get("/alerts", h.listAlerts)
			r.Post("/alerts", h.raiseAlert)
			r.Post("/alerts/{alertID}/resolve", h.resolveAlert)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Metrics reports request and rate limit counters.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics()
}

// Shutdown stops the limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.deps.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

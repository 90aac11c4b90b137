// Package rest exposes the snapshot and history over HTTP.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Config struct {
	Location       *time.Location
	MaxRange       time.Duration
	RateLimit      float64
	RateLimitBurst int
	Logger         *logrus.Logger
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	// Now defaults to time.Now; it anchors history requests without bounds.
	Now func() time.Time
}

// NewRouter builds the HTTP API. ws, when non-nil, is mounted at /ws.
func NewRouter(reader Reader, ws http.Handler, cfg Config) *chi.Mux {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	h := &handler{
		reader:    reader,
		validator: NewRequestValidator(cfg.MaxRange),
		location:  cfg.Location,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(instrument(NewMetrics(cfg.Registerer)))

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(rate.NewLimiter(limit, max(cfg.RateLimitBurst, 1))))
		r.Get("/snapshot", h.snapshot)
		r.Get("/history", h.history)
	})

	return r
}

// Package api assembles the HTTP surface of the service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/vidproxy/internal/api/handler"
	"github.com/hszk-dev/vidproxy/internal/api/middleware"
	"github.com/hszk-dev/vidproxy/internal/config"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Video  *handler.VideoHandler
	Admin  *handler.AdminHandler
	Health *handler.HealthHandler
}

// NewRouter builds the chi router with middleware, per-route rate limits and /metrics.
func NewRouter(logger *slog.Logger, limits config.RateLimitConfig, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if limits.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS)

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		resolveLimit := passThrough
		adminLimit := passThrough
		if limits.Enabled {
			r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(limits.GlobalPerMinute)))
			resolveLimit = middleware.RateLimit(middleware.NewIPRateLimiter(limits.ResolvePerMin))
			adminLimit = middleware.RateLimit(middleware.NewIPRateLimiter(limits.AdminPerMinute))
		}

		r.Group(func(r chi.Router) {
			r.Use(resolveLimit)
			r.Get("/resolve", h.Video.Resolve)
			r.Get("/save_video_info", h.Video.Resolve)
		})

		r.Get("/stream", h.Video.Stream)
		r.Get("/stream_video", h.Video.Stream)
		r.Get("/health", h.Health.Health)

		r.With(adminLimit).Get("/admin/db_info", h.Admin.DBInfo)
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }

package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl Limiter, rateMax int, rateWindow time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	// Hold creation is the hot, abusable path; webhook settlement must never
	// be rate limited or we would drop gateway deliveries.
	r.With(RateLimitMiddleware(rl, rateMax, rateWindow)).Post("/v1/holds", h.CreateHold)
	r.Get("/v1/availability", h.GetAvailability)
	r.Post("/v1/payments/webhook", h.PaymentWebhook)
	r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/health"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/middleware"
)

// RouterConfig carries the optional parts of the router.
type RouterConfig struct {
	PprofEnabled bool
	PprofCIDRs   []string

	// Per-IP limit on order creation and payment calls. 0 disables it.
	WriteRateLimitRPS   float64
	WriteRateLimitBurst int
}

// NewRouter creates a chi router with all order engine routes registered.
func NewRouter(h *OrderHandler, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("order-engine"))
	r.Use(middleware.Tracing())

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	limited := middleware.RateLimit(cfg.WriteRateLimitRPS, cfg.WriteRateLimitBurst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(limited).Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/search", h.SearchOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
			r.With(limited).Post("/{id}/payments", h.InitializePayment)
			r.With(limited).Post("/{id}/payments/verify", h.VerifyPayment)
		})
		r.Put("/variants/{id}/price", h.UpdateVariantPrice)
		r.Get("/analytics/summary", h.AnalyticsSummary)
	})

	return r
}

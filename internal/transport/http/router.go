// Package httptransport assembles the HTTP surface. Handlers stay thin and
// delegate to their services; the router only owns the middleware chain and
// the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medigraph/internal/platform/metrics"
	"medigraph/pkg/platform/middleware"
)

// Registrar is implemented by every vertical handler.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the middleware chain, the operational endpoints and every
// vertical's routes.
func NewRouter(logger *slog.Logger, httpMetrics *metrics.HTTP, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(httpMetrics.Middleware)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attest/internal/platform/metrics"
	"attest/pkg/platform/httputil"
	"attest/pkg/platform/middleware/metadata"
	"attest/pkg/platform/middleware/request"
	"attest/pkg/platform/middleware/requesttime"
)

// requestTimeout bounds every API request, exports included.
const requestTimeout = 30 * time.Second

// readinessTimeout bounds all readiness checks of one /readyz call.
const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one optional backend for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter builds the HTTP surface: the v1 API plus /healthz, /readyz and
// /metrics. m may be nil to disable HTTP metrics.
func NewRouter(h *Handler, m *metrics.Metrics, logger *slog.Logger, checks ...ReadinessCheck) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(checks, logger))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		h.Register(r)
	})
	return r
}

func readiness(checks []ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "backend", c.Name, "error", err)
				body[c.Name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

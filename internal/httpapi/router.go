// Package httpapi assembles the HTTP surface of the lending service.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"libraryservice/internal/audit"
	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/httpx"
	"libraryservice/internal/logging"
	"libraryservice/internal/membership"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Deps are the services exposed over HTTP.
type Deps struct {
	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service
	Logger      *slog.Logger

	// RateLimit and RateBurst bound mutating requests across all clients.
	// A non-positive RateLimit disables the limiter.
	RateLimit float64
	RateBurst int
}

// NewRouter mounts every domain under /api/v1.
func NewRouter(deps Deps) http.Handler {
	logger := logging.Default(deps.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(auditHolder)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimit > 0 {
			burst := deps.RateBurst
			if burst < 1 {
				burst = 1
			}
			r.Use(limitMutations(rate.NewLimiter(rate.Limit(deps.RateLimit), burst)))
		}
		catalog.NewHandler(deps.Catalog).Routes(r)
		membership.NewHandler(deps.Membership).Routes(r)
		circulation.NewHandler(deps.Circulation).Routes(r)
	})

	return r
}

// requestLogger attaches a request-scoped logger to the context and logs one
// line per completed request.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.ContextWithLogger(r.Context(), logger)))

			logger.Info("request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// auditHolder exposes a valid holder header to audit decorators.
func auditHolder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email, err := httpx.Holder(r); err == nil {
			r = r.WithContext(audit.ContextWithHolder(r.Context(), email))
		}
		next.ServeHTTP(w, r)
	})
}

func limitMutations(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					httpx.WriteError(w, http.StatusTooManyRequests, nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

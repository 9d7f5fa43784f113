// internal/middleware/requestlog.go
//
// Request logger.
//
// Context
// -------
// Outermost wrapper after panic recovery.  For every request it:
//
//   • reuses an inbound X-Request-Id or mints a UUID, and echoes it back,
//   • stores a child logger carrying the ID in the request context so the
//     dispatcher and page handlers log under the same ID,
//   • counts the response in http_requests_total{code}, and
//   • writes one INFO line with method, path, status, size, and latency.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/metrics"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-Id"

// RequestLogger returns the logging middleware bound to base.
func RequestLogger(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			log := base.With("request_id", id)
			ctx := logger.WithContext(r.Context(), log)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequests.WithLabelValues(strconv.Itoa(status)).Inc()

			log.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxAuditBodyBytes = 1024

// AuditMiddleware counts every request by route and logs mutating requests
// with a body summary for the audit trail.
func AuditMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	auditLogger := logger.With("component", "api_audit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			var bodySummary string
			mutating := isMutating(r.Method)
			if mutating && r.Body != nil {
				bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBodyBytes+1))
				if err == nil {
					if len(bodyBytes) > maxAuditBodyBytes {
						bodySummary = string(bodyBytes[:maxAuditBodyBytes]) + "...(truncated)"
					} else {
						bodySummary = string(bodyBytes)
					}
					r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), r.Body))
				}
			}

			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.statusCode)).Inc()

			if !mutating {
				return
			}
			auditLogger.Info("API audit",
				"request_id", requestID,
				"remote_addr", r.RemoteAddr,
				"client_ip", extractClientIP(r),
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"body_summary", bodySummary,
				"response_status", sw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// routePattern keeps metric cardinality bounded by using the matched chi
// pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.written = true
	}
	return sw.ResponseWriter.Write(b)
}

// Flush lets server-sent events pass through the wrapper.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

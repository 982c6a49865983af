package util

import (
	"log/slog"
	"net/http"
	"time"

	"audiobookd/internal/session"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// WithRequestLog emits a structured access-log line for each request.
// When a session interceptor ran earlier in the chain, the line carries
// the resolved username or the no-login reason; requests that skipped
// the session layer are logged without login fields.
func WithRequestLog(trusted *TrustedProxies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, observed := session.ContextWithObserved(r.Context())
		r = r.WithContext(ctx)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r, trusted),
			"request_id", RequestIDFromRequest(r),
		}
		if observed.Set {
			if observed.Outcome.State == session.StateResolved {
				attrs = append(attrs, "user", observed.Outcome.Identity.Username)
			} else {
				attrs = append(attrs, "login", observed.Outcome.State.String())
			}
		}
		slog.Info("http_request", attrs...)
	})
}

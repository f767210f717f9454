package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// UserFunc names the acting user of a request for log tagging. It must not
// fail; an empty result leaves the request untagged.
type UserFunc func(*http.Request) string

// Middleware returns a handler wrapper that puts a request ID and the user
// named by identify into the request context and logs every request. Reads
// log at Debug and edits at Info; client errors log at Warn and server
// errors at Error.
func Middleware(identify UserFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			ctx := WithRequestID(r.Context(), requestID)
			if identify != nil {
				if user := identify(r); user != "" {
					ctx = WithUser(ctx, user)
				}
			}
			r = r.WithContext(ctx)
			w.Header().Set(RequestIDHeader, requestID)

			quiet := slog.LevelInfo
			if isRead(r.Method) {
				quiet = slog.LevelDebug
			}
			LogContext(ctx, quiet, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr,
			)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			level, msg := quiet, "request completed"
			switch {
			case wrapped.statusCode >= 500:
				level, msg = slog.LevelError, "request failed"
			case wrapped.statusCode >= 400:
				level, msg = slog.LevelWarn, "request failed"
			}
			LogContext(ctx, level, msg,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"durationMs", time.Since(start).Milliseconds(),
			)
		})
	}
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working through the wrapper
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	bytes      int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// RequestID assigns every request an X-Request-ID, reusing a well-formed
// inbound value.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id assigned by RequestID
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDKey).(string)
	return id
}

// LoggingMiddleware logs all HTTP requests with level-based detail.
// 5xx responses log at ERROR, 4xx at WARN, everything else at INFO.
// Bodies carry health data and are never logged.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		slog.Debug("Incoming request",
			"request_id", GetRequestID(r),
			"remote_ip", getIP(r),
			"method", r.Method,
			"path", r.URL.Path,
			"content_length", r.ContentLength,
		)

		next.ServeHTTP(wrapped, r)

		var logLevel slog.Level
		var logMessage string
		switch {
		case wrapped.statusCode >= 500:
			logLevel = slog.LevelError
			logMessage = "Request failed with error"
		case wrapped.statusCode >= 400:
			logLevel = slog.LevelWarn
			logMessage = "Request failed"
		default:
			logLevel = slog.LevelInfo
			logMessage = "Request completed"
		}

		slog.Log(r.Context(), logLevel, logMessage,
			"request_id", GetRequestID(r),
			"remote_ip", getIP(r),
			"user_agent", r.UserAgent(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"bytes", wrapped.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

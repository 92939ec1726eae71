package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"finanzas/internal/log"
)

type contextKey struct{}

// Middleware assigns each request an id and logs its completion.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	total     atomic.Int64
}

func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{extractIP: extractIP, logger: logger.WithComponent(log.ComponentTrace)}
}

// Middleware returns HTTP middleware for request tracing. The request logger
// stored in the context carries the request id, so handler logs can be
// correlated with the access line.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	inner := log.RequestIDMiddleware(func(r *http.Request) string {
		return GetRequestID(r.Context())
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		r = r.WithContext(context.WithValue(r.Context(), contextKey{}, requestID))
		w.Header().Set("X-Request-ID", requestID)

		m.total.Add(1)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		inner.ServeHTTP(rw, r)

		level := slog.LevelInfo
		switch {
		case rw.statusCode >= 500:
			level = slog.LevelError
		case rw.statusCode >= 400:
			level = slog.LevelWarn
		}
		fields := log.NewFields().WithHTTP(r.Method, r.URL.Path, rw.statusCode, time.Since(start).Milliseconds())
		fields[log.FieldRequestID] = requestID
		fields[log.FieldQuery] = r.URL.RawQuery
		fields[log.FieldClientIP] = clientIP
		fields[log.FieldUserAgent] = r.Header.Get("User-Agent")
		m.logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)
	})
}

// TotalRequests reports how many requests went through the middleware.
func (m *Middleware) TotalRequests() int64 { return m.total.Load() }

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

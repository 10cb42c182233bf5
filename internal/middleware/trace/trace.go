// Package trace tags every request with an id and logs its outcome.
package trace

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"expenses/internal/log"
)

type ContextKey string

const (
	RequestIDKey    ContextKey = "request_id"
	RequestIDHeader            = "X-Request-ID"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expenses_http_requests_total",
		Help: "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expenses_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

type Middleware struct {
	logger    *log.Logger
	extractIP func(*http.Request) string
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Middleware{logger: logger.WithComponent(log.ComponentHTTP), extractIP: extractIP}
}

// Handler assigns a request id (reusing a well-formed incoming one), puts a
// request-scoped logger into the context and records the response.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := ulid.ParseStrict(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		reqLogger := m.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = log.NewContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, clientIP, r.Header.Get("User-Agent")).
			WithHTTPResponse(status, duration.Milliseconds())
		switch {
		case status >= 500:
			reqLogger.ErrorContext(ctx, "HTTP request completed", fields.ToSlice()...)
		case status >= 400:
			reqLogger.WarnContext(ctx, "HTTP request completed", fields.ToSlice()...)
		default:
			reqLogger.InfoContext(ctx, "HTTP request completed", fields.ToSlice()...)
		}
	})
}

func GenerateRequestID() string {
	return ulid.Make().String()
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/digitorus/tsaclient/internal/metrics"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit float64
	RateBurst int
	Log       logrus.FieldLogger
}

// NewRouter mounts h under /api together with /metrics.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(RateLimiter(opts.RateLimit, opts.RateBurst))
		}
		r.Mount("/api", h.Routes())
	})
	return r
}

// RateLimiter creates a rate limiting middleware
func RateLimiter(requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID propagates X-Request-ID, generating one when the client sent
// none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			requestLogger(r, log).WithFields(logrus.Fields{
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			}).Info("request")
		})
	}
}

func requestLogger(r *http.Request, log logrus.FieldLogger) logrus.FieldLogger {
	fields := logrus.Fields{"method": r.Method, "path": r.URL.Path, "remote": r.RemoteAddr}
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		fields["request_id"] = id
	}
	return log.WithFields(fields)
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
	"github.com/LuisBuenanyo/eos-phone-home/internal/metrics"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFrom returns the request ID stored by the middleware chain, or ""
// when the request did not pass through it.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Chain assembles the standard middleware stack: request ID tagging, then
// request logging and metrics, then panic recovery closest to the handler.
func Chain(logger *slog.Logger, adapter *pherrors.HTTPErrorAdapter, recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requestID(logging(logger, recorder, panicRecovery(adapter, next)))
	}
}

// responseWriter captures the status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestID tags every request with an ID, honoring one supplied by the
// caller so agent retries can be correlated across attempts.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func logging(logger *slog.Logger, recorder metrics.Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)
		recorder.IncRequest(endpoint, resultFor(rw.statusCode))
		recorder.ObserveRequestDuration(endpoint, duration)

		logger.Info("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(rw.statusCode),
			slog.Duration("duration", duration),
			logfields.RemoteAddr(r.RemoteAddr),
			logfields.UserAgent(r.UserAgent()),
			logfields.RequestID(RequestIDFrom(r.Context())))
	})
}

func panicRecovery(adapter *pherrors.HTTPErrorAdapter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Panic in HTTP handler",
					slog.Any("panic", rec),
					logfields.Path(r.URL.Path),
					logfields.RequestID(RequestIDFrom(r.Context())))
				err := pherrors.New(pherrors.CategoryInternal, pherrors.SeverityError, "internal server error")
				adapter.WriteErrorResponse(w, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// normalizeEndpoint collapses request paths onto the known route set so the
// endpoint metric label stays bounded under path scanning.
func normalizeEndpoint(path string) string {
	switch strings.TrimSuffix(path, "/") {
	case "/v1/activate":
		return "/v1/activate"
	case "/v1/ping":
		return "/v1/ping"
	case "/v1/stats":
		return "/v1/stats"
	case "/healthz":
		return "/healthz"
	case "/metrics":
		return "/metrics"
	default:
		return "other"
	}
}

func resultFor(status int) metrics.ResultLabel {
	switch {
	case status < http.StatusBadRequest:
		return metrics.ResultAccepted
	case status < http.StatusInternalServerError:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

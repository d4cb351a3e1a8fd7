package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shubhsaxena/tour-concierge/internal/observability"
)

type contextKey string

const requestMetaKey contextKey = "request_meta"

// requestMeta travels with one webhook request. The chat id is learned only
// once the handler has decoded the body, so it is filled in late and read by
// the logging and recovery middleware on the way out.
type requestMeta struct {
	id     string
	chatID string
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(requestMetaKey).(*requestMeta)
	return m
}

func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.id
	}
	return ""
}

func ChatIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.chatID
	}
	return ""
}

// annotateChat tags the request with the chat it belongs to.
func annotateChat(ctx context.Context, chatID string) {
	if m := metaFromContext(ctx); m != nil {
		m.chatID = chatID
	}
}

// RequestContextMiddleware assigns the request id and opens the request span.
// The span is renamed to the matched route once routing is done.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := &requestMeta{id: r.Header.Get("X-Request-ID")}
		if meta.id == "" {
			meta.id = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestMetaKey, meta)
		ctx, span := observability.StartSpan(ctx, "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("request_id", meta.id),
		)
		defer span.End()

		w.Header().Set("X-Request-ID", meta.id)
		if traceID := observability.TraceIDFromContext(ctx); traceID != "" {
			w.Header().Set("X-Trace-ID", traceID)
		}

		r = r.WithContext(ctx)
		next.ServeHTTP(w, r)

		span.SetName(r.Method + " " + routePattern(r))
		if meta.chatID != "" {
			span.SetAttributes(attribute.String("chat_id", meta.chatID))
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

// WriteHeader keeps the first status; net/http ignores later calls too.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware writes one access line per request. Server errors log at
// error and client errors at warn. Health checks and metrics scrapes log at debug.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", wrapped.statusCode),
				zap.Int("bytes", wrapped.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			}
			if chatID := ChatIDFromContext(r.Context()); chatID != "" {
				fields = append(fields, zap.String("chat_id", chatID))
			}
			if traceID := observability.TraceIDFromContext(r.Context()); traceID != "" {
				fields = append(fields, zap.String("trace_id", traceID))
			}
			if ce := logger.Check(accessLevel(route, wrapped.statusCode), "request completed"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

func accessLevel(route string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest && status != http.StatusTooManyRequests:
		return zapcore.WarnLevel
	case route == "/healthz" || route == "/readyz" || route == "/metrics":
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("request_id", RequestIDFromContext(r.Context())),
						zap.String("chat_id", ChatIDFromContext(r.Context())),
					)
					observability.MessagesTotal.WithLabelValues("http", "panic").Inc()
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"internal server error","code":"internal"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// InflightLimiter caps concurrently served API requests. A chat message holds
// its slot for the whole search, so the cap also bounds in-flight searches.
type InflightLimiter struct {
	slots  chan struct{}
	logger *zap.Logger
}

func NewInflightLimiter(maxInflight int, logger *zap.Logger) *InflightLimiter {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &InflightLimiter{slots: make(chan struct{}, maxInflight), logger: logger}
}

func (l *InflightLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.slots <- struct{}{}:
			defer func() { <-l.slots }()
			next.ServeHTTP(w, r)
		default:
			observability.MessagesTotal.WithLabelValues("http", "rejected").Inc()
			l.logger.Debug("api request rejected, in-flight cap reached",
				zap.String("route", routePattern(r)),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests in flight","code":"busy"}`))
		}
	})
}

// routePattern prefers the matched chi pattern so chat ids stay out of logs
// and span names.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return strings.TrimSuffix(p, "/*")
		}
	}
	return r.URL.Path
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Trace-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

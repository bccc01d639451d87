package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/eco-queue/internal/api/shared"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
)

// TraceMiddleware adds a trace ID to the request context, reusing a well-formed
// X-Trace-ID header, and stores a logger tagged with it. Handlers and everything
// they call log with the trace_id that error responses carry.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.WithTraceID(r.Context(), shared.TraceIDFromHeader(r))
		traceID := shared.GetTraceID(ctx)
		w.Header().Set(shared.TraceIDHeader, traceID)

		log := logger.FromContextOrDefault(ctx, slog.Default()).
			With(slog.String("trace_id", traceID))
		ctx = logger.WithLogger(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

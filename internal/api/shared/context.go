package shared

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const traceIDKey contextKey = "traceID"

// TraceIDHeader lets a caller such as the cron trigger supply its own trace ID.
const TraceIDHeader = "X-Trace-ID"

// NewTraceID returns 32 lowercase hex characters.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithTraceID stores id in ctx. An empty id is replaced with a new one.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewTraceID()
	}
	return context.WithValue(ctx, traceIDKey, id)
}

// GetTraceID retrieves the trace ID from the context, or "" when none is set.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// TraceIDFromHeader returns the trace ID supplied in r's TraceIDHeader when it
// is well formed. Anything else is ignored so callers cannot inject log noise.
func TraceIDFromHeader(r *http.Request) string {
	raw := strings.ToLower(strings.TrimSpace(r.Header.Get(TraceIDHeader)))
	if len(raw) != 32 {
		return ""
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return ""
	}
	return raw
}

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tickcast/server/internal/logging"
)

// RequestIDHeader carries the assigned request identifier back to the client.
const RequestIDHeader = "X-Request-ID"

// RequestContext identifies one inbound request for the duration of handling.
type RequestContext struct {
	ID      string
	Arrival time.Time
}

type contextKey string

var requestContextKey = contextKey("tickcast-request")

// NewRequestID derives an identifier from the arrival time plus a random
// suffix so concurrent arrivals in the same millisecond stay distinct.
func NewRequestID(arrival time.Time) string {
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return fmt.Sprintf("%d-%s", arrival.UnixMilli(), suffix)
}

// ContextWithRequest stores the request context for handlers downstream.
func ContextWithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestFromContext retrieves the request context assigned at ingress.
func RequestFromContext(ctx context.Context) (RequestContext, bool) {
	if ctx == nil {
		return RequestContext{}, false
	}
	rc, ok := ctx.Value(requestContextKey).(RequestContext)
	return rc, ok
}

// RequestMiddleware assigns every inbound request an identifier and arrival
// timestamp, derives a request-scoped logger, and logs the arrival.
func RequestMiddleware(base *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			arrival := time.Now()
			rc := RequestContext{ID: NewRequestID(arrival), Arrival: arrival}
			logger := base.With(logging.String(logging.RequestIDField, rc.ID))
			ctx := ContextWithRequest(r.Context(), rc)
			ctx = logging.ContextWithLogger(ctx, logger)
			r = r.WithContext(ctx)
			w.Header().Set(RequestIDHeader, rc.ID)
			logger.Info("request received",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tickcast/server/internal/config"
	"tickcast/server/internal/counter"
	"tickcast/server/internal/logging"
	"tickcast/server/internal/procstats"
	"tickcast/server/internal/pubsub"
	"tickcast/server/internal/simulate"
)

// Envelope is the JSON shape shared by the polling response and every
// streamed event.
type Envelope struct {
	Data              counter.TickEvent `json:"data"`
	ServerProcessedAt string            `json:"server_processed_at"`
	RequestID         string            `json:"request_id"`
}

// LatencyRecorder receives one sample per completed poll request.
type LatencyRecorder interface {
	AppendSample(requestID string, elapsed time.Duration) error
}

// StatsFunc returns a fresh process resource snapshot.
type StatsFunc func() (procstats.Snapshot, error)

// Options configures the HandlerSet.
type Options struct {
	Logger          *logging.Logger
	Counter         *counter.Counter
	Registry        *pubsub.Registry
	Simulator       simulate.Simulator
	ProcessingDelay time.Duration
	ActiveConns     func() int
	Stats           StatsFunc
	Latency         LatencyRecorder
	TimeSource      func() time.Time
}

// HandlerSet bundles the demo server's HTTP handlers.
type HandlerSet struct {
	logger          *logging.Logger
	counter         *counter.Counter
	registry        *pubsub.Registry
	simulator       simulate.Simulator
	processingDelay time.Duration
	activeConns     func() int
	stats           StatsFunc
	latency         LatencyRecorder
	now             func() time.Time
	started         time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	stats := opts.Stats
	if stats == nil {
		stats = procstats.Collect
	}
	delay := opts.ProcessingDelay
	if delay <= 0 {
		delay = config.ProcessingDelay
	}
	return &HandlerSet{
		logger:          logger,
		counter:         opts.Counter,
		registry:        opts.Registry,
		simulator:       opts.Simulator,
		processingDelay: delay,
		activeConns:     opts.ActiveConns,
		stats:           stats,
		latency:         opts.Latency,
		now:             now,
		started:         now(),
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/", h.IndexHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/poll", h.PollHandler())
	mux.HandleFunc("/sse", h.StreamHandler())
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
}

// PollHandler simulates the backend lookup, applies the fixed processing
// delay, and returns a counter snapshot in the shared envelope.
func (h *HandlerSet) PollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := h.requestContext(r)
		logger := logging.LoggerFromContext(r.Context())

		// Poll requests run to completion: once accepted, a client disconnect
		// must not abort the lookup, skip the latency sample, or suppress the
		// completion log. Only the streaming handlers watch the request context.
		result, err := h.simulator.Lookup(context.WithoutCancel(r.Context()))
		if err != nil {
			logger.Error("simulated lookup failed", logging.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		// Response-assembly work is always cooperative regardless of the
		// lookup variant; only the goroutine suspends here.
		time.Sleep(h.processingDelay)

		writeJSON(w, http.StatusOK, h.envelope(result, rc.ID))

		elapsed := h.now().Sub(rc.Arrival)
		if h.latency != nil {
			if err := h.latency.AppendSample(rc.ID, elapsed); err != nil {
				logger.Warn("latency sample dropped", logging.Error(err))
			}
		}
		logger.Info("poll served",
			logging.Int64("value", result.Value),
			logging.Duration("elapsed_ms", elapsed))
	}
}

// MetricsHandler returns a fresh process resource snapshot together with the
// live connection count and the shared counter value.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	type response struct {
		CPUUsage       procstats.CPUUsage    `json:"cpuUsage"`
		ActiveRequests int                   `json:"activeRequests"`
		MemoryUsage    procstats.MemoryUsage `json:"memoryUsage"`
		CurrentValue   int64                 `json:"currentValue"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.stats()
		if err != nil {
			logging.LoggerFromContext(r.Context()).Error("resource query failed", logging.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		resp := response{
			CPUUsage:    snap.CPU,
			MemoryUsage: snap.Memory,
		}
		if h.activeConns != nil {
			resp.ActiveRequests = h.activeConns()
		}
		if h.counter != nil {
			resp.CurrentValue = h.counter.Value()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports uptime and fan-out state.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Subscribers   int     `json:"subscribers"`
		Broadcasts    int64   `json:"broadcasts"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{
			Status:        "ok",
			UptimeSeconds: h.now().Sub(h.started).Seconds(),
		}
		if h.registry != nil {
			resp.Subscribers = h.registry.Len()
			resp.Broadcasts = h.registry.Broadcasts()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// NotFoundHandler responds with the plain-text 404 body used for any
// unrecognised path.
func (h *HandlerSet) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not found"))
	}
}

// envelope stamps the payload with the processing time and request identity.
func (h *HandlerSet) envelope(data counter.TickEvent, requestID string) Envelope {
	return Envelope{
		Data:              data,
		ServerProcessedAt: h.now().UTC().Format(time.RFC3339Nano),
		RequestID:         requestID,
	}
}

// requestContext returns the ingress-assigned context, or mints one for
// handlers exercised without the middleware.
func (h *HandlerSet) requestContext(r *http.Request) RequestContext {
	if rc, ok := RequestFromContext(r.Context()); ok {
		return rc
	}
	arrival := h.now()
	return RequestContext{ID: NewRequestID(arrival), Arrival: arrival}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

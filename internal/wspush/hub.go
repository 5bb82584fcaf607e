// Package wspush exposes the tick feed over a WebSocket, mirroring the SSE
// stream for clients that prefer a bidirectional transport. Inbound messages
// are ignored; the connection exists to be pushed to.
package wspush

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickcast/server/internal/counter"
	"tickcast/server/internal/httpapi"
	"tickcast/server/internal/logging"
	"tickcast/server/internal/pubsub"
	"tickcast/server/internal/simulate"
)

// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
const DefaultPingInterval = 30 * time.Second

// Options configures the Hub.
type Options struct {
	Logger       *logging.Logger
	Registry     *pubsub.Registry
	Simulator    simulate.Simulator
	PingInterval time.Duration
	TimeSource   func() time.Time

	// OnClose runs once per upgraded connection when it ends. Hijacked
	// sockets drop out of http.Server.ConnState reporting, so this is how
	// the connection gauge learns they closed.
	OnClose func()
}

// Hub upgrades connections and fans the tick feed out to them.
type Hub struct {
	logger       *logging.Logger
	registry     *pubsub.Registry
	simulator    simulate.Simulator
	pingInterval time.Duration
	now          func() time.Time
	onClose      func()
	upgrader     websocket.Upgrader
}

// NewHub constructs a Hub using the provided options.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	interval := opts.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &Hub{
		logger:       logger,
		registry:     opts.Registry,
		simulator:    opts.Simulator,
		pingInterval: interval,
		now:          now,
		onClose:      opts.OnClose,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request, writes an immediate snapshot, then pushes one
// message per tick until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	rc, ok := httpapi.RequestFromContext(r.Context())
	if !ok {
		arrival := h.now()
		rc = httpapi.RequestContext{ID: httpapi.NewRequestID(arrival), Arrival: arrival}
	}
	logger := h.logger.With(logging.String(logging.RequestIDField, rc.ID))

	snapshot, err := h.simulator.Lookup(r.Context())
	if err != nil {
		logger.Error("simulated lookup failed", logging.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	// The upgrade hijacked the socket; both pumps close it, so the close
	// notification must fire exactly once.
	release := func() {}
	if h.onClose != nil {
		var once sync.Once
		hook := h.onClose
		release = func() { once.Do(hook) }
	}

	if err := h.writeEnvelope(conn, snapshot, rc.ID); err != nil {
		logger.Debug("initial websocket write failed", logging.Error(err))
		conn.Close()
		release()
		return
	}

	sub := pubsub.NewSubscriber(rc.ID, pubsub.DefaultBuffer)
	h.registry.Register(sub)

	// Reader pump: the feed accepts no client messages, but reading is how
	// the peer's close frame is detected.
	go func() {
		defer func() {
			h.registry.Unregister(sub)
			conn.Close()
			release()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer pump.
	go func() {
		ticker := time.NewTicker(h.pingInterval)
		defer func() {
			ticker.Stop()
			h.registry.Unregister(sub)
			conn.Close()
			release()
			logger.Info("websocket feed closed")
		}()
		for {
			select {
			case event, open := <-sub.Events():
				if !open {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := h.writeEnvelope(conn, event, rc.ID); err != nil {
					logger.Debug("websocket write failed", logging.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
					return
				}
			}
		}
	}()
}

func (h *Hub) writeEnvelope(conn *websocket.Conn, data counter.TickEvent, requestID string) error {
	payload, err := json.Marshal(httpapi.Envelope{
		Data:              data,
		ServerProcessedAt: h.now().UTC().Format(time.RFC3339Nano),
		RequestID:         requestID,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

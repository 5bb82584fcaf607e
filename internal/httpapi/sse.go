package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tickcast/server/internal/logging"
	"tickcast/server/internal/pubsub"
)

// StreamHandler upgrades the response to a server-sent event stream: one
// immediate snapshot, then one event per tick until the client disconnects.
func (h *HandlerSet) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		rc := h.requestContext(r)
		logger := logging.LoggerFromContext(r.Context())

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		snapshot, err := h.simulator.Lookup(r.Context())
		if err != nil {
			logger.Error("simulated lookup failed", logging.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if err := writeEvent(w, h.envelope(snapshot, rc.ID)); err != nil {
			logger.Debug("initial stream write failed", logging.Error(err))
			return
		}
		flusher.Flush()

		sub := pubsub.NewSubscriber(rc.ID, pubsub.DefaultBuffer)
		h.registry.Register(sub)
		defer func() {
			h.registry.Unregister(sub)
			logger.Info("stream closed")
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-sub.Events():
				if !open {
					// Evicted by the registry.
					return
				}
				if err := writeEvent(w, h.envelope(event, rc.ID)); err != nil {
					logger.Debug("stream write failed", logging.Error(err))
					return
				}
				flusher.Flush()
			}
		}
	}
}

// writeEvent frames one envelope using the SSE wire convention.
func writeEvent(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

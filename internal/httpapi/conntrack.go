package httpapi

import (
	"net"
	"net/http"
	"sync/atomic"
)

// ConnTracker counts open connections on the listening socket. Wire
// OnStateChange into http.Server.ConnState and Active feeds the metrics
// snapshot's activeRequests field.
type ConnTracker struct {
	active atomic.Int64
}

// Active reports the number of currently open connections.
func (t *ConnTracker) Active() int {
	return int(t.active.Load())
}

// OnStateChange tracks the connection lifecycle transitions reported by the
// HTTP server. Hijacked connections stay counted: the server stops reporting
// their state once another owner takes the socket over, so that owner must
// call Release when it closes the connection.
func (t *ConnTracker) OnStateChange(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		t.active.Add(1)
	case http.StateClosed:
		t.active.Add(-1)
	}
}

// Release removes one hijacked connection from the gauge.
func (t *ConnTracker) Release() {
	t.active.Add(-1)
}

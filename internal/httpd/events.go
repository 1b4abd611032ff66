package httpd

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
)

// Event is one radio state transition pushed to /events subscribers.
type Event struct {
	State    string `json:"state"`
	SSID     string `json:"ssid,omitempty"`
	Reason   string `json:"reason,omitempty"`
	APActive bool   `json:"ap_active"`
}

// StateEvent converts a radio transition into the wire event.
func StateEvent(s radio.State, apActive bool) Event {
	ev := Event{APActive: apActive}
	switch s.Kind {
	case radio.ApOnly:
		ev.State = "ap_only"
	case radio.ApWithPendingJoin:
		ev.State = "joining"
		ev.SSID = s.Target
	case radio.StationConnected:
		ev.State = "connected"
		ev.SSID = s.Network
	case radio.StationFailed:
		ev.State = "join_failed"
		ev.SSID = s.Target
		ev.Reason = s.Reason
	}
	return ev
}

// writeWait bounds how long a slow subscriber may block a broadcast.
const writeWait = 5 * time.Second

// EventHub fans radio state transitions out to WebSocket subscribers.
// Portal pages and the monitor TUI use it to follow scan/join progress
// without polling.
type EventHub struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			// The portal is the only origin a captive client can
			// reach; origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// HandleUpgrade upgrades the request and registers the subscriber. The
// connection is held open until the client goes away or the hub closes.
func (h *EventHub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	logging.Debug("Event subscriber connected",
		zap.String("remote_addr", r.RemoteAddr))

	// Drain the connection so pings and closes are processed; the hub
	// never expects client payloads.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.remove(conn)
		logging.Debug("Event subscriber disconnected",
			zap.String("remote_addr", r.RemoteAddr))
	}()
}

// Broadcast pushes an event to every subscriber. Subscribers that cannot
// be written to within the deadline are dropped.
func (h *EventHub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			_ = conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops every subscriber and rejects future upgrades.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		_ = conn.Close()
		delete(h.conns, conn)
	}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = conn.Close()
	delete(h.conns, conn)
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"http-inspector/internal/domain"
)

type MonitorEvent struct {
	Type        string              `json:"type"`
	ID          string              `json:"id,omitempty"`
	Total       int                 `json:"total"`
	Errors      int                 `json:"errors,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// clientQueue bounds the events buffered per websocket client.
const clientQueue = 64

// MonitorHub pushes capture activity to websocket clients and in-process
// subscribers. It is also the floating-button overlay: while active it keeps a
// badge of the stored and errored counts and broadcasts every change.
//
// Broadcast never waits on a client. Each connection has its own queue and
// writer goroutine; events for a full queue are dropped, and a connection
// whose write fails is unregistered.
type MonitorHub struct {
	mu       sync.RWMutex
	clients  map[*monitorClient]struct{}
	upgrader websocket.Upgrader

	lmu       sync.RWMutex
	listeners map[chan MonitorEvent]struct{}

	bmu         sync.Mutex
	badgeActive bool
	total, errs int
}

type monitorClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewMonitorHub(allowOrigin string) *MonitorHub {
	return &MonitorHub{
		clients: make(map[*monitorClient]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowOrigin == "" || allowOrigin == "*" || origin == "" || origin == allowOrigin
		}},
		listeners: make(map[chan MonitorEvent]struct{}),
	}
}

func (h *MonitorHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	cl := &monitorClient{conn: c, send: make(chan []byte, clientQueue)}
	// current badge so a late client does not wait for the next capture
	if ev, ok := h.badgeEvent(); ok {
		data, _ := json.Marshal(ev)
		cl.send <- data
	}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(cl)
	for {
		// reads only detect client close
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(cl)
}

func (h *MonitorHub) writeLoop(cl *monitorClient) {
	for data := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(cl)
			return
		}
	}
}

// drop unregisters cl and closes its connection; later calls are no-ops.
func (h *MonitorHub) drop(cl *monitorClient) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	if ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	if ok {
		_ = cl.conn.Close()
	}
}

func (h *MonitorHub) Broadcast(ev MonitorEvent) {
	data, _ := json.Marshal(ev)
	// sends happen under the read lock so drop cannot close a queue mid-send
	h.mu.RLock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default: // slow client, drop
		}
	}
	h.mu.RUnlock()

	h.lmu.RLock()
	for ch := range h.listeners {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
	h.lmu.RUnlock()
}

// Subscribe returns a channel receiving monitor events. Caller must Unsubscribe.
func (h *MonitorHub) Subscribe() chan MonitorEvent {
	ch := make(chan MonitorEvent, 256)
	h.lmu.Lock()
	h.listeners[ch] = struct{}{}
	h.lmu.Unlock()
	return ch
}

func (h *MonitorHub) Unsubscribe(ch chan MonitorEvent) {
	h.lmu.Lock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
	h.lmu.Unlock()
}

// Clients returns the number of connected websocket clients.
func (h *MonitorHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TransactionCaptured is registered with the inspector as a listener.
func (h *MonitorHub) TransactionCaptured(tx domain.Transaction, total int) {
	h.Broadcast(MonitorEvent{Type: "transaction_captured", ID: tx.ID, Total: total, Transaction: &tx})
}

// Cleared announces that the store was emptied.
func (h *MonitorHub) Cleared() {
	h.Broadcast(MonitorEvent{Type: "transactions_cleared", ID: "*"})
}

func (h *MonitorHub) Activate() {
	h.bmu.Lock()
	h.badgeActive = true
	h.bmu.Unlock()
	if ev, ok := h.badgeEvent(); ok {
		h.Broadcast(ev)
	}
}

func (h *MonitorHub) Deactivate() {
	h.bmu.Lock()
	h.badgeActive = false
	h.bmu.Unlock()
	h.Broadcast(MonitorEvent{Type: "badge_hidden"})
}

func (h *MonitorHub) SetBadge(total, errors int) {
	h.bmu.Lock()
	h.total, h.errs = total, errors
	h.bmu.Unlock()
	if ev, ok := h.badgeEvent(); ok {
		h.Broadcast(ev)
	}
}

// Badge returns the current counts and whether the badge is shown.
func (h *MonitorHub) Badge() (total, errors int, active bool) {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	return h.total, h.errs, h.badgeActive
}

func (h *MonitorHub) badgeEvent() (MonitorEvent, bool) {
	total, errs, active := h.Badge()
	if !active {
		return MonitorEvent{}, false
	}
	return MonitorEvent{Type: "badge", Total: total, Errors: errs}, true
}

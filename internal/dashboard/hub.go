package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/shoptalk/internal/engine"
)

// clientBuffer is the per-subscriber queue depth. A subscriber that falls
// this far behind starts losing events rather than stalling the engine.
const clientBuffer = 16

// Hub fans turn events out to connected websocket subscribers. It implements
// engine.EventSink; Emit never blocks.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Emit broadcasts one turn event. Slow subscribers drop events.
func (h *Hub) Emit(ev engine.TurnEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleEvents streams turn events to one websocket subscriber until the
// connection closes.
func (d *Dashboard) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("events websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := d.hub.subscribe()
	defer d.hub.unsubscribe(ch)

	// Reader goroutine: we never expect inbound frames, but reading is the
	// only way to notice the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

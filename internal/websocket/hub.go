package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// broadcastBuffer bounds the events queued between Broadcast and Run.
const broadcastBuffer = 64

// Hub maintains the set of listening clients and fans events out to them.
// The last event is replayed to every client that joins later.
type Hub struct {
	// Registered clients
	clients map[*listener]struct{}

	// Register requests
	register chan *listener

	// Unregister requests
	unregister chan *listener

	// Outbound events
	broadcast chan []byte

	// Closed when Run returns
	done chan struct{}

	// Guards clients for Len
	mu  sync.RWMutex
	log logrus.FieldLogger
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*listener]struct{}),
		register:   make(chan *listener),
		unregister: make(chan *listener),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log.WithField("component", "websocket"),
	}
}

// Run starts the hub's main loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	var last []byte

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			if last != nil {
				client.send <- last
			}
			h.log.WithFields(logrus.Fields{"client": client.id, "listeners": n}).Debug("📡 Listener connected")

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			last = msg
			h.mu.RLock()
			var slow []*listener
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.log.WithField("client", c.id).Warn("⚠️ Listener too slow, disconnecting")
				h.drop(c)
			}
		}
	}
}

func (h *Hub) drop(c *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.WithField("client", c.id).Debug("📴 Listener disconnected")
	}
}

// Broadcast queues v for every listener. It never blocks: when the queue
// is full the event is dropped.
func (h *Hub) Broadcast(v interface{}) bool {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Warn("Error marshaling event")
		return false
	}
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.log.Warn("⚠️ Event queue full, dropping event")
		return false
	}
}

// Len returns the number of connected listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) join(c *listener) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *listener) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

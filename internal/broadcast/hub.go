package broadcast

import (
	"context"
	"log"
	"sync/atomic"

	"launchstream/internal/domain"
)

// HubOptions configures the hub.
type HubOptions struct {
	// Logger for client lifecycle messages. Defaults to log.Default().
	Logger *log.Logger
	// OnClientCount, when set, observes the client count after every change.
	OnClientCount func(n int)
	// OnDroppedSend, when set, is called each time a slow client is dropped.
	OnDroppedSend func()
}

// Hub fans events out to connected WebSocket clients. All client set
// mutations happen on the Run goroutine; a slow client loses its connection,
// never the others.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *domain.Event
	done       chan struct{}

	count atomic.Int32

	logger        *log.Logger
	onClientCount func(int)
	onDroppedSend func()
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts *HubOptions) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *domain.Event, 256),
		done:       make(chan struct{}),
		logger:     log.Default(),
	}
	if opts != nil {
		if opts.Logger != nil {
			h.logger = opts.Logger
		}
		h.onClientCount = opts.OnClientCount
		h.onDroppedSend = opts.OnDroppedSend
	}
	return h
}

// Broadcast queues an event for fan-out. Never blocks the pipeline: when the
// hub queue is full the event is dropped for broadcasting (it is already
// persisted upstream).
func (h *Hub) Broadcast(evt *domain.Event) {
	select {
	case h.broadcast <- evt:
	default:
		h.logger.Printf("[broadcast] hub queue full, dropping %s event", evt.Type)
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.removeClient(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.notifyCount()
			h.logger.Printf("[broadcast] client connected, total=%d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.removeClient(client)
				h.logger.Printf("[broadcast] client disconnected, total=%d", len(h.clients))
			}

		case evt := <-h.broadcast:
			h.fanOut(evt)
		}
	}
}

// fanOut serializes the event once and offers it to every interested client.
func (h *Hub) fanOut(evt *domain.Event) {
	payload, err := evt.Marshal()
	if err != nil {
		h.logger.Printf("[broadcast] marshal %s event: %v", evt.Type, err)
		return
	}

	for client := range h.clients {
		if !client.wants(evt.Type) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Full buffer means the client cannot keep up. Dropping the
			// client keeps the fan-out non-blocking for everyone else.
			h.logger.Printf("[broadcast] client send buffer full, dropping client")
			h.removeClient(client)
			if h.onDroppedSend != nil {
				h.onDroppedSend()
			}
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.notifyCount()
}

func (h *Hub) notifyCount() {
	h.count.Store(int32(len(h.clients)))
	if h.onClientCount != nil {
		h.onClientCount(len(h.clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

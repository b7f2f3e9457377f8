package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"launchstream/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum control message size allowed from peer
	maxMessageSize = 1024

	// Per-client send buffer; a client that lags this far behind is dropped
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one connected WebSocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// kinds is the subscribed event filter; nil means all kinds.
	kinds   map[domain.EventKind]bool
	kindsMu sync.RWMutex
}

// subscribeMessage is the only inbound message clients send.
type subscribeMessage struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// ServeWS upgrades an HTTP request and registers the client with the hub.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Printf("[broadcast] upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// wants reports whether the client's filter accepts the kind.
func (c *Client) wants(kind domain.EventKind) bool {
	c.kindsMu.RLock()
	defer c.kindsMu.RUnlock()
	if c.kinds == nil {
		return true
	}
	return c.kinds[kind]
}

// setFilter replaces the event-kind filter. An empty list restores all kinds.
func (c *Client) setFilter(types []string) {
	c.kindsMu.Lock()
	defer c.kindsMu.Unlock()
	if len(types) == 0 {
		c.kinds = nil
		return
	}
	c.kinds = make(map[domain.EventKind]bool, len(types))
	for _, t := range types {
		c.kinds[domain.EventKind(t)] = true
	}
}

// readPump consumes control messages and enforces pong liveness. Exit
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Printf("[broadcast] client read: %v", err)
			}
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Action == "subscribe" {
			c.setFilter(msg.Types)
		}
	}
}

// writePump pushes queued events and pings to the peer. A closed send channel
// (hub dropped us) or any write error ends the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

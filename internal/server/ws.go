package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// WSMessage is one event on the acquire stream: "sample" updates while the
// ramp runs, then a single "done" or "error".
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsClient serializes writes to one connection; the underlying conn does not
// allow concurrent writers.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// WSHub fans acquire events out to every attached client. A client whose
// write fails is dropped on the spot; the browser reconnects on its own.
type WSHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*wsClient]struct{})}
}

func (h *WSHub) Add(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *WSHub) Remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Broadcast marshals once and sends to every client.
func (h *WSHub) Broadcast(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.send(b); err != nil {
			delete(h.clients, c)
			_ = c.conn.Close()
		}
	}
}

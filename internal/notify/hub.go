// Package notify relays analyzer events to websocket clients.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

// Client is one connected websocket subscriber. An empty streamID receives
// every stream.
type Client struct {
	conn     *websocket.Conn
	streamID analyzer.StreamID
	send     chan Message
	log      *slog.Logger
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *slog.Logger
	now     func() time.Time
}

// NewHub creates a websocket hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log,
		now:     time.Now,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", slog.String("stream_id", string(c.streamID)))
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.log.Debug("websocket client disconnected", slog.String("stream_id", string(c.streamID)))
}

// Broadcast queues msg for every interested client without blocking. A
// client whose buffer is full misses the message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.streamID != "" && c.streamID != msg.StreamID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("client send buffer full, dropping message",
				slog.String("stream_id", string(msg.StreamID)),
				slog.String("type", string(msg.Type)))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Listener returns the analyzer listener that feeds this hub. Annotation
// events stay server-side.
func (h *Hub) Listener() analyzer.Listener {
	return func(ev analyzer.Event) {
		if ev.Type == analyzer.EventSpikeAnnotated {
			return
		}
		h.Broadcast(newMessage(ev, h.now().UTC()))
	}
}

// writePump sends messages from the client's send channel to the websocket.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.log.Debug("websocket write error", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// readPump drains the connection to notice disconnects; clients do not send.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

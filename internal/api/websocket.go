package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"crypto-trading-bot/internal/events"
	"crypto-trading-bot/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin checks happen in the CORS layer
		return true
	},
}

// WSClient is one connected websocket consumer.
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub fans bot events out to every connected client. Slow clients
// are dropped rather than allowed to stall the broadcast loop.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
	logger     *logging.Logger
}

func NewWSHub(logger *logging.Logger) *WSHub {
	if logger == nil {
		logger = logging.Default()
	}
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 1024),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		logger:     logger.WithComponent("websocket"),
	}
}

// Run drives the hub's register/broadcast loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// full send buffer means a stalled client
					go func(c *WSClient) { h.unregister <- c }(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent serializes an event and queues it for every client.
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("Failed to marshal event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast channel full, dropping event", "type", string(event.Type))
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  s.hub,
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; the stream is one-way. Reading is
// still required to notice closes and answer pings.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

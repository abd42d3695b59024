package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from anywhere on the LAN
	},
}

// Client is one connected decision-stream consumer.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	identityID string // optional filter
}

// Hub fans confirmed attendance decisions out to connected WebSocket
// clients. This is the terminal's live exposure of the decision stream; the
// backend report path is independent of it.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "filter", client.identityID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			observability.WSConnections.Dec()
			slog.Debug("ws client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.identityID != "" {
					var evt dto.DecisionEvent
					if err := json.Unmarshal(message, &evt); err == nil {
						if strconv.FormatInt(evt.IdentityID, 10) != client.identityID {
							continue
						}
					}
				}

				select {
				case client.send <- message:
				default:
					// Client buffer full: disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastDecision sends one confirmed attendance event to all clients.
func (h *Hub) BroadcastDecision(ev models.AttendanceEvent) {
	evtType := "clock_in"
	if ev.Status == models.StatusOut {
		evtType = "clock_out"
	}

	data, err := json.Marshal(dto.DecisionEvent{
		Type:       evtType,
		EventID:    ev.EventID,
		IdentityID: ev.IdentityID,
		Name:       ev.Name,
		Status:     string(ev.Status),
		Timestamp:  ev.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("marshal ws decision", "error", err)
		return
	}
	h.broadcast <- data
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:       conn,
		send:       make(chan []byte, 64),
		identityID: c.Query("identity_id"),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		// Incoming messages are ignored; the loop only detects disconnects.
	}
}

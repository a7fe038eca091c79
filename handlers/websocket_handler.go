package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow connections from any origin
	},
}

// Hub fans push messages out to every connected subscriber. A subscriber
// whose buffer is full is dropped.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan WebSocketMessage
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	count      atomic.Int64
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan WebSocketMessage, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// directMessage is a reply meant for a single client.
type directMessage struct {
	client *Client
	msg    WebSocketMessage
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			zap.L().Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.count.Add(1)
			metrics.WSConnections.Inc()
			zap.L().Info("WebSocket client connected", zap.String("client_id", client.id), zap.Int64("total_clients", h.count.Load()))

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.direct:
			h.mu.RLock()
			if h.clients[d.client] {
				select {
				case d.client.send <- d.msg:
					metrics.WSMessagesSent.Inc()
				default:
				}
			}
			h.mu.RUnlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.WSMessagesSent.Inc()
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				zap.L().Warn("WebSocket client too slow, disconnecting", zap.String("client_id", client.id))
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
	metrics.WSConnections.Dec()
	zap.L().Info("WebSocket client disconnected", zap.String("client_id", client.id), zap.Int64("total_clients", h.count.Load()))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
	h.count.Store(0)
}

// Broadcast queues a message for every subscriber; it never blocks.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	msg := WebSocketMessage{Type: msgType, Data: data, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
	default:
		zap.L().Warn("Broadcast channel full, dropping message", zap.String("type", msgType))
	}
}

// sendTo queues msg for one client. Only the hub goroutine writes to a
// registered client's channel, so a client removed in the meantime is skipped.
func (h *Hub) sendTo(client *Client, msg WebSocketMessage) {
	select {
	case h.direct <- directMessage{client: client, msg: msg}:
	case <-h.done:
	default:
		zap.L().Warn("Direct channel full, dropping message", zap.String("type", msg.Type), zap.String("client_id", client.id))
	}
}

func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Client is one websocket subscriber.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan WebSocketMessage
}

// ServeWS upgrades the connection, greets the client and subscribes it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan WebSocketMessage, sendBuffer),
	}
	client.send <- WebSocketMessage{
		Type:      models.MessageConnectionResponse,
		Data:      map[string]string{"data": "Connected", "client_id": client.id},
		Timestamp: time.Now(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Error("WebSocket error", zap.Error(err), zap.String("client_id", c.id))
			}
			return
		}

		switch msg.Type {
		case models.MessagePing:
			c.hub.sendTo(c, WebSocketMessage{Type: models.MessagePong, Timestamp: time.Now()})
		default:
			zap.L().Debug("Ignoring client message", zap.String("type", msg.Type), zap.String("client_id", c.id))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				zap.L().Error("Failed to send websocket message", zap.Error(err), zap.String("type", msg.Type))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

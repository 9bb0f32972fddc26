package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/wsquery"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Message types sent by the hub
const (
	TypeModelState   = "model.state"
	TypeChannelState = "channel.state"
)

// Client represents a WebSocket client connection
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool // Subscribed models; empty means all
	mu     sync.RWMutex
	log    zerolog.Logger
}

// Hub maintains the set of active clients and broadcasts state changes
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WSMessage
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	metrics    *metrics.NodeMetrics
	// snapshot, when set, provides the current state sent on subscribe
	snapshot func(model string) (store.State, bool)
	mu       sync.RWMutex
	log      zerolog.Logger
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// HubOptions configures a Hub
type HubOptions struct {
	// AllowedOrigins restricts browser origins; empty allows all
	AllowedOrigins []string
	Metrics        *metrics.NodeMetrics
	Snapshot       func(model string) (store.State, bool)
}

// NewHub creates a new WebSocket hub
func NewHub(opts HubOptions) *Hub {
	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		metrics:  opts.Metrics,
		snapshot: opts.Snapshot,
		log:      logger.WithComponent("websocket.hub"),
	}
}

// Run starts the hub's main loop; it returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.SetHubClients(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetHubClients(n)
			h.log.Debug().Str("client", client.id).Int("clients", n).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetHubClients(n)
			h.log.Debug().Str("client", client.id).Int("clients", n).Msg("Client unregistered")

		case message := <-h.broadcast:
			data := h.messageToBytes(message)
			if data == nil {
				continue
			}

			// Collect clients that need to be removed (those with full send buffers)
			var clientsToRemove []*Client

			h.mu.RLock()
			for client := range h.clients {
				if !client.subscribed(message.Topic) {
					continue
				}
				select {
				case client.send <- data:
				default:
					clientsToRemove = append(clientsToRemove, client)
				}
			}
			h.mu.RUnlock()

			if len(clientsToRemove) > 0 {
				h.mu.Lock()
				for _, client := range clientsToRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all subscribed clients
func (h *Hub) Broadcast(msg *WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("type", msg.Type).Msg("Broadcast channel full, dropping message")
	}
}

// BroadcastState sends a model state to the clients subscribed to the model
func (h *Hub) BroadcastState(st store.State) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(st)
	if err != nil {
		h.log.Error().Err(err).Str("model", st.Model).Msg("Failed to marshal model state")
		return
	}
	h.metrics.RecordBroadcast(st.Model)
	h.Broadcast(&WSMessage{
		Type:    TypeModelState,
		Topic:   st.Model,
		Payload: payload,
	})
}

// BroadcastChannelState announces a query channel state change to everyone
func (h *Hub) BroadcastChannelState(name string, state wsquery.State) {
	if h == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"channel": name, "state": state.String()})
	h.Broadcast(&WSMessage{
		Type:    TypeChannelState,
		Payload: payload,
	})
}

// messageToBytes converts a WSMessage to JSON bytes
func (h *Hub) messageToBytes(msg *WSMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return nil
	}
	return data
}

// subscribed reports whether the client wants messages of topic. Untargeted
// messages reach every client.
func (c *Client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return topic == "" || len(c.topics) == 0 || c.topics[topic]
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("WebSocket error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.handleMessage(&msg)
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.log.Debug().Err(err).Msg("Failed to write close message")
				}
				return
			}

			// one frame per message, clients decode each frame as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming client messages
func (c *Client) handleMessage(msg *WSMessage) {
	var payload struct {
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		for _, topic := range payload.Topics {
			c.topics[topic] = true
		}
		c.mu.Unlock()
		c.log.Debug().Strs("topics", payload.Topics).Msg("Client subscribed to models")

		// bring the client up to date without waiting for the next change
		if c.hub.snapshot == nil {
			return
		}
		for _, topic := range payload.Topics {
			st, ok := c.hub.snapshot(topic)
			if !ok {
				continue
			}
			data, err := json.Marshal(st)
			if err != nil {
				continue
			}
			out := c.hub.messageToBytes(&WSMessage{Type: TypeModelState, Topic: topic, Payload: data})
			select {
			case c.send <- out:
			default:
			}
		}

	case "unsubscribe":
		c.mu.Lock()
		for _, topic := range payload.Topics {
			delete(c.topics, topic)
		}
		c.mu.Unlock()
		c.log.Debug().Strs("topics", payload.Topics).Msg("Client unsubscribed from models")
	}
}

// ServeWebSocket handles WebSocket requests from clients
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: make(map[string]bool),
		log:    logger.WithComponent("websocket.client").With().Str("client", id).Logger(),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

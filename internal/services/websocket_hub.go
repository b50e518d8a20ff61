package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hotelpms/server/internal/observability"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventPublisher delivers conflict events to subscribers of a topic
type EventPublisher interface {
	BroadcastToTopic(topic string, msg WSMessage)
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID         string
	Topics     map[string]bool
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	mu         sync.Mutex
	closedOnce sync.Once
}

// WebSocketHub fans conflict events out to dashboard connections
type WebSocketHub struct {
	clients    map[*WSClient]bool
	topics     map[string]map[*WSClient]bool // topic -> clients
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *broadcastMsg
	quit       chan struct{}
	quitOnce   sync.Once
	mu         sync.RWMutex
	logger     *observability.Logger
}

type broadcastMsg struct {
	topic   string
	message []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WSClient]bool),
		topics:     make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *broadcastMsg, 256),
		quit:       make(chan struct{}),
		logger:     observability.GetLogger().WithField("component", "websocket_hub"),
	}
}

// Run starts the hub's main loop. It returns after Shutdown.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debugf("WebSocket client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for topic := range client.Topics {
					h.removeFromTopic(client, topic)
				}
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.Debugf("WebSocket client disconnected: %s", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients
			if msg.topic != "" {
				targets = h.topics[msg.topic]
			}

			for client := range targets {
				select {
				case client.Send <- msg.message:
				default:
					// Client buffer full, close connection
					go func(c *WSClient) {
						h.unregister <- c
					}(client)
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			return
		}
	}
}

// Shutdown stops the main loop
func (h *WebSocketHub) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Subscribe adds a client to a topic
func (h *WebSocketHub) Subscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.Topics[topic] = true
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSClient]bool)
	}
	h.topics[topic][client] = true
	h.logger.Debugf("Client %s subscribed to topic: %s", client.ID, topic)
}

// Unsubscribe removes a client from a topic
func (h *WebSocketHub) Unsubscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.Topics, topic)
	h.removeFromTopic(client, topic)
}

// removeFromTopic must be called with h.mu held
func (h *WebSocketHub) removeFromTopic(client *WSClient, topic string) {
	if topicClients, ok := h.topics[topic]; ok {
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// BroadcastToTopic sends a message to all clients subscribed to a topic.
// Messages are dropped when the broadcast queue is full.
func (h *WebSocketHub) BroadcastToTopic(topic string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Error marshaling WebSocket message: %v", err)
		return
	}

	select {
	case h.broadcast <- &broadcastMsg{topic: topic, message: data}:
	default:
		h.logger.WithField("topic", topic).Warnf("Broadcast queue full, dropping %s event", msg.Type)
	}
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetTopicSubscriberCount returns the number of subscribers for a topic
func (h *WebSocketHub) GetTopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.topics[topic]; ok {
		return len(clients)
	}
	return 0
}

// NewClient creates a new WebSocket client connected to this hub
func (h *WebSocketHub) NewClient(id string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		Topics: make(map[string]bool),
		Conn:   conn,
		Send:   make(chan []byte, 256),
		hub:    h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump pumps messages from the websocket connection to the hub
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnf("WebSocket error: %v", err)
			}
			break
		}

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}

// Common message types
const (
	WSTypeConflictsDetected = "conflicts_detected"
	WSTypeConflictResolved  = "conflict_resolved"
	WSTypeConflictIgnored   = "conflict_ignored"
	WSTypeAutoResolved      = "conflicts_auto_resolved"
	WSTypeSchedulerProgress = "scheduler_progress"
	WSTypeSchedulerComplete = "scheduler_complete"
	WSTypeError             = "error"
	WSTypeSubscribe         = "subscribe"
	WSTypeUnsubscribe       = "unsubscribe"
	WSTypePing              = "ping"
	WSTypePong              = "pong"
)

// Common topics
const (
	TopicScheduler = "scheduler"
	TopicProperty  = "property" // prefix with property ID: property:{propertyID}
)

// PropertyTopic returns the topic carrying a property's conflict events
func PropertyTopic(propertyID string) string {
	return TopicProperty + ":" + propertyID
}

// ConflictsDetectedPayload is sent after a detection pass
type ConflictsDetectedPayload struct {
	PropertyID      string   `json:"propertyId"`
	RunID           string   `json:"runId"`
	Detected        int      `json:"detected"`
	Persisted       int      `json:"persisted"`
	FailedDetectors []string `json:"failedDetectors,omitempty"`
	Partial         bool     `json:"partial"`
}

// ConflictStatusPayload is sent when a conflict is resolved or ignored
type ConflictStatusPayload struct {
	PropertyID string `json:"propertyId"`
	ConflictID string `json:"conflictId"`
	Status     string `json:"status"`
	Action     string `json:"action,omitempty"`
	By         string `json:"by"`
}

// AutoResolvedPayload is sent after an auto-resolution batch
type AutoResolvedPayload struct {
	PropertyID    string `json:"propertyId"`
	ResolvedCount int    `json:"resolvedCount"`
}

// SchedulerProgressPayload is sent while the scheduler scans properties
type SchedulerProgressPayload struct {
	Running           bool    `json:"running"`
	PropertiesTotal   int     `json:"propertiesTotal"`
	PropertiesScanned int     `json:"propertiesScanned"`
	ConflictsDetected int     `json:"conflictsDetected"`
	ConflictsResolved int     `json:"conflictsResolved"`
	Progress          float64 `json:"progress"`
	CurrentPropertyID string  `json:"currentPropertyId,omitempty"`
}

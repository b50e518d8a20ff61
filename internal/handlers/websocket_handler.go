package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now - can be restricted in production
		return true
	},
}

// WebSocketHandler streams conflict events to dashboards
type WebSocketHandler struct {
	hub    *services.WebSocketHub
	logger *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: observability.GetLogger().WithField("component", "websocket"),
	}
}

// HandleConnection upgrades HTTP to WebSocket. With ?propertyId= the client
// is subscribed to that property's conflict events straight away.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)

	if propertyID := r.URL.Query().Get("propertyId"); propertyID != "" {
		h.hub.Subscribe(client, services.PropertyTopic(propertyID))
	}

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debugf("Invalid WebSocket message: %v", err)
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic := topicOf(msg.Payload); topic != "" {
			h.hub.Subscribe(client, topic)
		}

	case services.WSTypeUnsubscribe:
		if topic := topicOf(msg.Payload); topic != "" {
			h.hub.Unsubscribe(client, topic)
		}

	case services.WSTypePing:
		response := services.WSMessage{Type: services.WSTypePong}
		if data, err := json.Marshal(response); err == nil {
			select {
			case client.Send <- data:
			default:
			}
		}

	default:
		h.logger.Debugf("Unknown WebSocket message type: %s", msg.Type)
	}
}

// topicOf accepts either a bare topic string or {"topic": "..."}
func topicOf(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return p
	case map[string]interface{}:
		if topic, ok := p["topic"].(string); ok {
			return topic
		}
		if propertyID, ok := p["propertyId"].(string); ok && propertyID != "" {
			return services.PropertyTopic(propertyID)
		}
	}
	return ""
}

// websocket.go - Live change feed for panel mutations
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/panel-configurator/backend/internal/models"
)

// WebSocket message types for the change feed protocol
const (
	// Client -> Server messages
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeConnected    = "connected"
	MsgTypePong         = "pong"
	MsgTypePanelUpdated = "panel:updated"
	MsgTypeError        = "error"
)

// WSMessage is the frame exchanged over the change feed
type WSMessage struct {
	Type      string          `json:"type"`
	PanelID   string          `json:"panel_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// PanelUpdatedPayload carries the authoritative slot set after a mutation.
// Clients replace their whole snapshot with it; no incremental patching.
type PanelUpdatedPayload struct {
	PanelID string        `json:"panel_id"`
	Slots   []models.Slot `json:"slots"`
}

// wsClient is one connected feed consumer. The write mutex serializes
// frames; gorilla connections allow a single concurrent writer.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	panels map[string]bool // subscribed panel IDs; empty set means all panels
}

func (c *wsClient) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) subscribe(panelID string) {
	if panelID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panels[panelID] = true
}

func (c *wsClient) unsubscribe(panelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.panels, panelID)
}

func (c *wsClient) wants(panelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.panels) == 0 || c.panels[panelID]
}

// Hub fans successful mutations out to websocket subscribers so other
// clients can re-sync their grids.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a change feed hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleWebSocket upgrades the connection and runs the feed protocol until
// the client disconnects
func (h *Hub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	client := &wsClient{conn: ws, panels: make(map[string]bool)}
	h.register(client)
	defer h.unregister(client)

	h.log.Debug("change feed client connected")
	client.send(WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("change feed read failed", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			client.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeSubscribe:
			client.subscribe(msg.PanelID)
		case MsgTypeUnsubscribe:
			client.unsubscribe(msg.PanelID)
		default:
			client.send(WSMessage{
				Type:      MsgTypeError,
				Message:   "unknown message type: " + msg.Type,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}

	h.log.Debug("change feed client disconnected")
	return nil
}

// BroadcastPanelUpdated pushes the post-commit slot set to every subscriber
// of the panel. Clients that fail the write are dropped.
func (h *Hub) BroadcastPanelUpdated(panelID string, slots []models.Slot) {
	payload, err := json.Marshal(PanelUpdatedPayload{PanelID: panelID, Slots: slots})
	if err != nil {
		h.log.Error("encode panel update", zap.Error(err))
		return
	}
	msg := WSMessage{
		Type:      MsgTypePanelUpdated,
		PanelID:   panelID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.wants(panelID) {
			continue
		}
		if err := client.send(msg); err != nil {
			h.log.Debug("drop change feed client", zap.Error(err))
			h.unregister(client)
			client.conn.Close()
		}
	}
}

// ClientCount returns the number of connected feed clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

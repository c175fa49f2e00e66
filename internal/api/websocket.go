package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// syncEvent is tracked so a client connecting mid-sync sees its progress.
const syncEvent = "sync:update"

// ──────────────────── WebSocket Hub ────────────────────

type WSHub struct {
	mu          sync.RWMutex
	clients     map[*WSClient]bool
	activeSyncs map[string]json.RawMessage // user_id → last sync:update payload
	syncsMu     sync.RWMutex
}

type WSClient struct {
	conn *websocket.Conn
	// userID scopes the stream; empty receives every event.
	userID string
	send   chan []byte
}

type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:     make(map[*WSClient]bool),
		activeSyncs: make(map[string]json.RawMessage),
	}
}

// Broadcast delivers an event to every client subscribed to the event's
// user. Slow clients drop messages rather than block the caller.
func (h *WSHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return
	}
	userID := eventUser(data)

	if event == syncEvent {
		h.trackSync(userID, data, msg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(userID) {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (c *WSClient) wants(userID string) bool {
	return c.userID == "" || c.userID == userID
}

func eventUser(data interface{}) string {
	if m, ok := data.(map[string]interface{}); ok {
		id, _ := m["user_id"].(string)
		return id
	}
	return ""
}

// trackSync keeps the latest progress of each running sync.
func (h *WSHub) trackSync(userID string, data interface{}, raw []byte) {
	if userID == "" {
		return
	}
	m, _ := data.(map[string]interface{})
	status, _ := m["status"].(string)

	h.syncsMu.Lock()
	defer h.syncsMu.Unlock()
	if status == "running" {
		h.activeSyncs[userID] = json.RawMessage(raw)
	} else {
		delete(h.activeSyncs, userID)
	}
}

// sendActiveSyncs replays running sync state to a newly connected client.
func (h *WSHub) sendActiveSyncs(client *WSClient) {
	h.syncsMu.RLock()
	defer h.syncsMu.RUnlock()
	for userID, msg := range h.activeSyncs {
		if !client.wants(userID) {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:   conn,
		userID: r.URL.Query().Get("user_id"),
		send:   make(chan []byte, 64),
	}

	s.wsHub.addClient(client)
	s.wsHub.sendActiveSyncs(client)
	s.logger.Debug("websocket client connected", zap.String("user_id", client.userID))

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop keeps the connection alive and notices disconnects.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.wsHub.removeClient(client)
	s.logger.Debug("websocket client disconnected", zap.String("user_id", client.userID))
}

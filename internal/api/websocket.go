package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openmensa/rfid-station/internal/core"
	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Terminals run on the local network
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`              // Message type
	ID      string          `json:"id,omitempty"`      // Request ID for request/response matching
	Payload json.RawMessage `json:"payload,omitempty"` // Message payload
	Error   string          `json:"error,omitempty"`   // Error message if any
}

// WSClient represents a connected terminal client
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub manages all WebSocket connections and fans scan events out to
// them. It implements the scan pipeline's Publisher.
type WSHub struct {
	server *Server
	log    *logging.Logger

	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

var _ core.Publisher = (*WSHub)(nil)

// NewWSHub creates a new WebSocket hub
func NewWSHub(server *Server, log *logging.Logger) *WSHub {
	return &WSHub{
		server:     server,
		log:        log,
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub's main loop
func (h *WSHub) Run() {
	// Re-panic after logging since hub crash is fatal
	defer logging.RecoverAndLog("WebSocket hub", true)

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
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends an event to every connected terminal. Fire-and-forget:
// a broadcast with no clients is dropped silently.
func (h *WSHub) Broadcast(event string, payload any) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		h.log.Error(logging.CatWebSocket, "Broadcast payload marshal failed", map[string]any{
			"event": event,
			"error": err.Error(),
		})
		return
	}
	msg, _ := json.Marshal(WSMessage{Type: event, Payload: payloadBytes})

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn(logging.CatWebSocket, "Broadcast queue full, dropping event", map[string]any{
			"event": event,
		})
	}
}

// Handler returns the WebSocket upgrade handler.
func (h *WSHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error(logging.CatWebSocket, "WebSocket upgrade failed", map[string]any{
				"error":      err.Error(),
				"remoteAddr": r.RemoteAddr,
			})
			return
		}

		h.log.Info(logging.CatWebSocket, "Terminal connected", map[string]any{
			"remoteAddr": r.RemoteAddr,
		})

		client := &WSClient{
			conn: conn,
			send: make(chan []byte, 256),
			hub:  h,
		}

		h.register <- client

		go client.writePump()
		go client.readPump()

		// New terminals get the current reader status right away.
		client.sendResponse("", core.EventReaderStatus, h.server.supervisor.Status())
	}
}

func (c *WSClient) readPump() {
	// Recover from panics (runs last due to LIFO)
	defer logging.RecoverAndLog("WebSocket readPump", false)
	// Cleanup (runs first)
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn(logging.CatWebSocket, "WebSocket unexpected close", map[string]any{
					"error": err.Error(),
				})
			} else {
				c.hub.log.Debug(logging.CatWebSocket, "Terminal disconnected", nil)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("", "invalid message format")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	// Recover from panics (runs last due to LIFO)
	defer logging.RecoverAndLog("WebSocket writePump", false)
	// Cleanup (runs first)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}

			if err := w.Close(); err != nil {
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

func (c *WSClient) handleMessage(msg WSMessage) {
	c.hub.log.Debug(logging.CatWebSocket, "Received message", map[string]any{
		"type": msg.Type,
		"id":   msg.ID,
	})

	switch msg.Type {
	case "status":
		c.handleStatus(msg.ID)
	case "manual_scan":
		c.handleManualScan(msg.ID, msg.Payload)
	case "reconnect":
		c.handleReconnect(msg.ID)
	case "history":
		c.handleHistory(msg.ID, msg.Payload)
	case "confirm_reservation":
		c.handleConfirmReservation(msg.ID, msg.Payload)
	case "version":
		c.handleVersion(msg.ID)
	case "health":
		c.handleHealth(msg.ID)
	default:
		c.hub.log.Warn(logging.CatWebSocket, "Unknown message type", map[string]any{
			"type": msg.Type,
		})
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) sendResponse(id string, msgType string, payload interface{}) {
	payloadBytes, _ := json.Marshal(payload)
	response := WSMessage{
		Type:    msgType,
		ID:      id,
		Payload: payloadBytes,
	}
	responseBytes, _ := json.Marshal(response)
	select {
	case c.send <- responseBytes:
	default:
	}
}

func (c *WSClient) sendError(id string, errMsg string) {
	response := WSMessage{
		Type:  "error",
		ID:    id,
		Error: errMsg,
	}
	responseBytes, _ := json.Marshal(response)
	select {
	case c.send <- responseBytes:
	default:
	}
}

func (c *WSClient) handleStatus(id string) {
	c.sendResponse(id, core.EventReaderStatus, c.hub.server.supervisor.Status())
}

func (c *WSClient) handleManualScan(id string, payload json.RawMessage) {
	var req struct {
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.UID == "" {
		c.sendError(id, "invalid payload: uid is required")
		return
	}

	if err := c.hub.server.supervisor.SimulateScan(req.UID); err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.sendResponse(id, "manual_scan_ok", map[string]string{
		"uid": core.CanonicalUID(req.UID),
	})
}

func (c *WSClient) handleReconnect(id string) {
	if err := c.hub.server.supervisor.Reconnect(); err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.sendResponse(id, "reconnect_requested", map[string]string{
		"status": "reconnecting",
	})
}

func (c *WSClient) handleHistory(id string, payload json.RawMessage) {
	limit := defaultHistoryLimit
	if len(payload) > 0 {
		var req struct {
			Limit int `json:"limit"`
		}
		if err := json.Unmarshal(payload, &req); err == nil && req.Limit > 0 {
			limit = req.Limit
			if limit > maxHistoryLimit {
				limit = maxHistoryLimit
			}
		}
	}

	c.sendResponse(id, "history", map[string]interface{}{
		"scans": c.hub.server.history.Recent(limit),
		"count": c.hub.server.history.Len(),
	})
}

func (c *WSClient) handleConfirmReservation(id string, payload json.RawMessage) {
	var req struct {
		ReservationID string `json:"reservationId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ReservationID == "" {
		c.sendError(id, "invalid payload: reservationId is required")
		return
	}

	ctx, cancel := c.hub.server.opCtx()
	defer cancel()

	result, err := c.hub.server.reservations.Confirm(ctx, req.ReservationID)
	if err != nil {
		if errors.Is(err, service.ErrReservationNotFound) ||
			errors.Is(err, service.ErrAlreadyServed) ||
			errors.Is(err, service.ErrCancelled) {
			c.sendError(id, err.Error())
			return
		}
		c.hub.log.Error(logging.CatWebSocket, "Reservation confirm failed", map[string]any{
			"reservationId": req.ReservationID,
			"error":         err.Error(),
		})
		c.sendError(id, "failed to confirm reservation")
		return
	}
	c.sendResponse(id, "reservation_confirmed", result)
}

func (c *WSClient) handleVersion(id string) {
	c.sendResponse(id, "version", map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
	})
}

func (c *WSClient) handleHealth(id string) {
	st := c.hub.server.supervisor.Status()
	c.sendResponse(id, "health", map[string]interface{}{
		"status":          "ok",
		"readerConnected": st.Connected,
		"mockMode":        st.MockMode,
	})
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // monitor is meant for local use
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RecordPayload describes one recorded value without shipping the samples.
type RecordPayload struct {
	Tag   string `json:"tag"`
	Kind  string `json:"kind"`
	Len   int    `json:"len"`
	Value any    `json:"value,omitempty"` // scalars only
}

// WSHub fans messages out to every connected viewer. It is a record sink and
// a logrus hook, so a run streams its records and log lines to the browser.
type WSHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	log.WithField("clients", len(h.clients)).Debug("websocket client connected")
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[conn] {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	log.WithField("clients", len(h.clients)).Debug("websocket client disconnected")
}

// Clients returns the number of connected viewers.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		// Not logged through logrus: the hub is itself a hook.
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(status string, detail any) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: map[string]any{
			"status": status,
			"detail": detail,
		},
	})
}

// Record implements record.Sink.
func (h *WSHub) Record(tag string, value any) {
	h.Broadcast(WSMessage{Type: "record", Payload: describe(tag, value)})
}

func describe(tag string, value any) RecordPayload {
	p := RecordPayload{Tag: tag}
	switch v := value.(type) {
	case []complex128:
		p.Kind, p.Len = "complex", len(v)
	case [][]complex128:
		p.Kind, p.Len = "complex_blocks", len(v)
	case []float64:
		p.Kind, p.Len = "real", len(v)
	case []int16:
		p.Kind, p.Len = "pcm", len(v)
	case []byte:
		p.Kind, p.Len = "bits", len(v)
	case int, int64, float64, string, bool:
		p.Kind, p.Len, p.Value = "scalar", 1, v
	default:
		p.Kind = "other"
	}
	return p
}

// Levels implements logrus.Hook.
func (h *WSHub) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel}
}

// Fire implements logrus.Hook.
func (h *WSHub) Fire(entry *log.Entry) error {
	if h.Clients() == 0 {
		return nil
	}
	fields := make(map[string]string, len(entry.Data))
	for k, v := range entry.Data {
		fields[k] = fmt.Sprint(v)
	}
	h.Broadcast(WSMessage{
		Type: "log",
		Payload: map[string]any{
			"level":   entry.Level.String(),
			"message": entry.Message,
			"fields":  fields,
		},
	})
	return nil
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/hexburg/internal/engine"
)

const (
	maxStreamConns  = 16
	streamQueue     = 8
	streamWriteWait = 5 * time.Second
	streamPongWait  = 60 * time.Second
)

// Hub fans tick summaries out to websocket subscribers. Slow subscribers
// drop messages rather than stall the simulation.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan []byte)}
}

// Subscribe registers a subscriber. ok is false when the hub is full.
func (h *Hub) Subscribe() (id uuid.UUID, ch <-chan []byte, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) >= maxStreamConns {
		return uuid.Nil, nil, false
	}
	id = uuid.New()
	c := make(chan []byte, streamQueue)
	h.subs[id] = c
	return id, c, true
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(c)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends a tick summary to every subscriber. Suitable as
// Simulation.OnStep.
func (h *Hub) Broadcast(sum engine.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	data, err := json.Marshal(sum)
	if err != nil {
		slog.Error("stream encode failed", "error", err)
		return
	}
	for _, c := range h.subs {
		select {
		case c <- data:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes a summary every tick.
// Incoming messages are ignored; the read loop only detects disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	id, ch, ok := s.Hub.Subscribe()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Hub.Unsubscribe(id)
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "sub_id", id)

	// Current state first so clients need not wait a tick.
	if data, err := json.Marshal(s.Sim.Summary()); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.Hub.Unsubscribe(id)
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPongWait / 2)
	defer ping.Stop()
	defer s.Hub.Unsubscribe(id)

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-done:
			slog.Info("stream client disconnected", "sub_id", id)
			return
		}
	}
}

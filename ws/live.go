// Package ws pushes newly shared secrets to open /secrets pages so they
// update without a reload.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hush/hr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the payload broadcast for every submitted secret.
type Event struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

type subscriber struct {
	conn *websocket.Conn
	// a websocket conn does not allow concurrent writes
	writeMu sync.Mutex
}

func (s *subscriber) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// Hub keeps the set of live /secrets viewers.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func New() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s] = struct{}{}
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		_ = s.conn.Close()
	}
}

// Subscribers returns the current viewer count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast sends the event to every viewer. A failing subscriber is
// dropped; the submit that triggered the broadcast never fails because of
// a dead connection.
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("error marshalling live event", "err", err)
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if err := s.write(websocket.TextMessage, payload); err != nil {
			slog.Info("dropping live feed subscriber", "err", err)
			h.unregister(s)
		}
	}
}

// Handle upgrades the request and parks the connection until the client
// goes away. Clients only listen; anything they send is discarded.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) *hr.Error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own response
		slog.Error("failed to upgrade live feed connection", "err", err)
		return nil
	}

	sub := &subscriber{conn: conn}
	h.register(sub)
	slog.Info("live feed subscriber connected", "remote", r.RemoteAddr)

	go func() {
		defer h.unregister(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

package priceclient

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/wire"
)

// wireTickerPrice is the JSON-visible shape of a TickerPrice broadcast.
type wireTickerPrice struct {
	Ticker string `json:"ticker"`
	Price  uint32 `json:"price"`
}

// WSHub fans every TickerPrice out to connected WebSocket clients,
// grounded on the teacher's Publisher subscriber-channel fan-out
// (internal/marketdata/publisher.go) generalized to remote WebSocket
// connections via gorilla/websocket (SPEC_FULL.md §6 DOMAIN STACK).
type WSHub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWSHub creates an empty hub.
func NewWSHub(log *zap.Logger) *WSHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:      log,
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and registers it for broadcast until
// it disconnects.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.drainUntilClosed(conn)
}

// drainUntilClosed discards anything the client sends (this hub is
// broadcast-only) until the read fails, then deregisters the connection.
func (h *WSHub) drainUntilClosed(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast implements Broadcaster: it writes tp as a JSON text frame to
// every connected client, dropping (and deregistering) any client whose
// write fails — a slow or dead WebSocket subscriber never blocks the
// price feed's timer thread.
func (h *WSHub) Broadcast(tp wire.TickerPrice) {
	payload, err := json.Marshal(wireTickerPrice{Ticker: tp.Ticker.String(), Price: tp.Price})
	if err != nil {
		h.log.Error("failed to encode ticker price", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/config"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
)

const (
	// MessageSubscribed is sent once a client is registered for a match.
	MessageSubscribed = "SUBSCRIBED"

	sendBuffer      = 256
	broadcastBuffer = 1024
)

// WSMessage is the envelope pushed to websocket clients. Type is a rules.EventType
// or MessageSubscribed.
type WSMessage struct {
	Type     string         `json:"type"`
	MatchID  string         `json:"matchId,omitempty"`
	PlayerID string         `json:"playerId,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	matchID string
}

type outbound struct {
	matchID string
	payload []byte
}

// Hub fans match events out to the websocket clients watching that match.
type Hub struct {
	clients    map[string]map[*client]bool
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	logger     *zap.Logger
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	writeWait := cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.ReadBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		writeWait: writeWait,
		logger:    logger,
	}
}

// Attach subscribes the hub to every event on bus and returns the subscription
// handle. The callback never blocks the publisher; events are dropped when the
// broadcast queue is full.
func (h *Hub) Attach(bus *rules.EventBus) int {
	return bus.Subscribe(func(ev rules.Event) {
		payload, err := json.Marshal(eventMessage(ev))
		if err != nil {
			h.logger.Warn("failed to encode event", zap.String("match_id", ev.MatchID), zap.Error(err))
			return
		}
		select {
		case h.broadcast <- outbound{matchID: ev.MatchID, payload: payload}:
		default:
			h.logger.Warn("event dropped",
				zap.String("match_id", ev.MatchID),
				zap.String("event_type", string(ev.Type)),
			)
		}
	})
}

func eventMessage(ev rules.Event) WSMessage {
	data := map[string]any{
		"turn":      ev.Turn,
		"timestamp": ev.Timestamp,
	}
	if ev.ActionID != "" {
		data["actionId"] = ev.ActionID
	}
	if ev.ActionType != "" {
		data["actionType"] = ev.ActionType
	}
	if ev.TargetID != "" {
		data["targetId"] = ev.TargetID
	}
	if ev.Amount != 0 {
		data["amount"] = ev.Amount
	}
	if len(ev.Metadata) > 0 {
		data["metadata"] = ev.Metadata
	}
	return WSMessage{
		Type:     string(ev.Type),
		MatchID:  ev.MatchID,
		PlayerID: ev.PlayerID,
		Data:     data,
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, watchers := range h.clients {
				for c := range watchers {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]bool)
			return

		case c := <-h.register:
			watchers := h.clients[c.matchID]
			if watchers == nil {
				watchers = make(map[*client]bool)
				h.clients[c.matchID] = watchers
			}
			watchers[c] = true
			ack, _ := json.Marshal(WSMessage{Type: MessageSubscribed, MatchID: c.matchID})
			c.send <- ack
			h.logger.Debug("websocket client registered", zap.String("match_id", c.matchID))

		case c := <-h.unregister:
			if watchers, ok := h.clients[c.matchID]; ok && watchers[c] {
				delete(watchers, c)
				close(c.send)
				if len(watchers) == 0 {
					delete(h.clients, c.matchID)
				}
				h.logger.Debug("websocket client unregistered", zap.String("match_id", c.matchID))
			}

		case msg := <-h.broadcast:
			watchers := h.clients[msg.matchID]
			for c := range watchers {
				select {
				case c.send <- msg.payload:
				default:
					close(c.send)
					delete(watchers, c)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and registers the connection for the match
// named by the match_id query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match_id")
	if matchID == "" {
		http.Error(w, "match_id is required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		matchID: matchID,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump only drains control frames; clients submit actions over gRPC.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// NewWebSocketServer builds the HTTP server that exposes hub on cfg.Path.
func NewWebSocketServer(cfg config.WebSocketConfig, hub *Hub) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	mux := http.NewServeMux()
	mux.Handle(path, hub)
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// pingInterval and idleTimeout implement spec.md §6.3's WebSocket
// heartbeat contract: a {type:"ping"} every 30s, idle connections
// closed after 90s with none observed.
const (
	pingInterval = 30 * time.Second
	idleTimeout  = 90 * time.Second
)

// streamMessage is the server-push envelope (spec.md §6.3).
type streamMessage struct {
	Type    string       `json:"type"`
	Payload *model.Alert `json:"payload,omitempty"`
}

// streamHub fans out alert and graph-change notifications from the
// broker to every connected WebSocket client. Grounded on
// carverauto-serviceradar/pkg/core/api/stream.go's per-connection ping
// ticker, adapted from a single-query stream to a broadcast hub since
// spec.md's /ws has no client-supplied query — every client gets the
// same feed.
type streamHub struct {
	broker *broker.Broker
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn  *websocket.Conn
	send  chan streamMessage
	close chan struct{}
	once  sync.Once
}

func newStreamHub(b *broker.Broker, logger *slog.Logger) *streamHub {
	return &streamHub{
		broker: b,
		logger: logger.With("component", "ws_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// run subscribes to the alert and graph-change topics and fans every
// message out to all connected clients until ctx is canceled.
func (h *streamHub) run(ctx context.Context) error {
	alertToken, err := broker.SubscribeJSON(h.broker, broker.TopicAlerts, func(alert model.Alert) {
		h.broadcast(streamMessage{Type: "alert", Payload: &alert})
	})
	if err != nil {
		return err
	}
	graphToken, err := h.broker.Subscribe(broker.TopicGraphChanges, func(_ []byte) {
		h.broadcast(streamMessage{Type: "graph"})
	})
	if err != nil {
		_ = h.broker.Unsubscribe(alertToken)
		return err
	}

	<-ctx.Done()
	_ = h.broker.Unsubscribe(alertToken)
	_ = h.broker.Unsubscribe(graphToken)

	h.mu.Lock()
	for c := range h.clients {
		c.closeOnce()
	}
	h.mu.Unlock()
	return nil
}

func (h *streamHub) broadcast(msg streamMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping message for slow websocket client")
		}
	}
}

func (h *streamHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan streamMessage, 32), close: make(chan struct{})}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(client)
	h.readLoop(client)

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.closeOnce()
}

// readLoop discards client input (spec.md §6.3: "client->server is
// ignored") but still needs to read to notice a closed connection.
func (h *streamHub) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop pushes alert/graph messages plus a periodic {type:"ping"}
// heartbeat. idle is a safety net: as long as writes keep succeeding
// every pingInterval, it never fires; it only closes a connection stuck
// well past the point three consecutive heartbeats should have gone
// out.
func (h *streamHub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteJSON(streamMessage{Type: "ping"}); err != nil {
				return
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(idleTimeout)
		case <-idle.C:
			h.logger.Debug("closing idle websocket connection")
			return
		case <-c.close:
			return
		}
	}
}

func (c *wsClient) closeOnce() {
	c.once.Do(func() { close(c.close) })
}

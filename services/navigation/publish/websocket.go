package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/services/navigation"
)

const (
	wsWriteWait  = time.Second
	wsSendBuffer = 16
)

// WebsocketConfig is where the live feed is served.
type WebsocketConfig struct {
	Address string `json:"address" yaml:"address"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *WebsocketConfig) Validate(path string) error {
	if cfg.Address == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "address")
	}
	return nil
}

// WebsocketHub broadcasts every payload to all connected websocket clients. It is an http.Handler.
// A client that falls behind loses messages rather than slowing the session down.
type WebsocketHub struct {
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	workers sync.WaitGroup
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWebsocketHub returns a hub with no clients.
func NewWebsocketHub(logger logging.Logger) *WebsocketHub {
	return &WebsocketHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// the feed is read-only and meant for local dashboards
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*wsClient]struct{}{},
	}
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *WebsocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		goutils.UncheckedError(conn.Close())
		return
	}
	h.clients[c] = struct{}{}
	h.workers.Add(1)
	h.mu.Unlock()
	h.logger.Debugw("websocket client connected", "remote", r.RemoteAddr)

	goutils.PanicCapturingGo(func() {
		defer h.workers.Done()
		h.writeLoop(c)
	})

	// reads only to notice the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugw("websocket client read error", "remote", r.RemoteAddr, "error", err)
			}
			break
		}
	}
	h.remove(c)
}

func (h *WebsocketHub) writeLoop(c *wsClient) {
	defer func() {
		goutils.UncheckedError(c.conn.Close())
	}()
	for msg := range c.send {
		goutils.UncheckedError(c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			// drain so remove never blocks on a full buffer
			for range c.send {
			}
			return
		}
	}
	goutils.UncheckedError(c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait),
	))
}

func (h *WebsocketHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients is the number of connected clients.
func (h *WebsocketHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues payload for every client.
func (h *WebsocketHub) Publish(ctx context.Context, payload navigation.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("websocket hub is closed")
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debugw("dropping message for slow websocket client", "remote", c.conn.RemoteAddr().String())
		}
	}
	return nil
}

// Close disconnects every client and waits for their writers to finish.
func (h *WebsocketHub) Close() error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.workers.Wait()
	return nil
}

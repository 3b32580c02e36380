package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Snapshots queued per subscriber before new ones are dropped
	sendBuffer = 8
)

// subscriber is one WebSocket client.
type subscriber struct {
	conn *websocket.Conn
	send chan accessory.Snapshot
	once sync.Once
}

func (c *subscriber) close() {
	c.once.Do(func() { close(c.send) })
}

// hub fans snapshots out to subscribers.
type hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

func newHub() *hub {
	return &hub{subscribers: make(map[*subscriber]struct{})}
}

// add registers c and reports false once closeAll has run.
func (h *hub) add(c *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[c] = struct{}{}
	return true
}

func (h *hub) remove(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[c]; ok {
		delete(h.subscribers, c)
		c.close()
	}
}

// broadcast queues snap for every subscriber. A subscriber whose buffer is
// full misses this snapshot.
func (h *hub) broadcast(snap accessory.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subscribers {
		select {
		case c.send <- snap:
		default:
			logging.Debug("Subscriber buffer full, dropping snapshot",
				zap.String("remote_addr", c.conn.RemoteAddr().String()),
			)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.subscribers {
		delete(h.subscribers, c)
		c.close()
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// command is a client request on the stream.
type command struct {
	On *bool `json:"on"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logging.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	remoteAddr := conn.RemoteAddr().String()

	// The current snapshot is queued before registering so it is always
	// the first message a subscriber sees.
	c := &subscriber{conn: conn, send: make(chan accessory.Snapshot, sendBuffer)}
	c.send <- s.outlet.Snapshot()
	if !s.hub.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logging.LogWebSocketEvent(remoteAddr, "connected", zap.Int("subscribers", s.hub.len()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	s.readPump(c)
}

// readPump applies commands from the client until the connection closes.
func (s *Server) readPump(c *subscriber) {
	remoteAddr := c.conn.RemoteAddr().String()
	defer func() {
		s.hub.remove(c)
		logging.LogWebSocketEvent(remoteAddr, "closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("WebSocket read failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.On == nil {
			logging.Debug("Ignoring WebSocket message",
				zap.String("remote_addr", remoteAddr),
				zap.ByteString("content", data),
			)
			continue
		}

		ctx := context.Background()
		if err := s.outlet.SetOn(ctx, *cmd.On); err != nil {
			logging.Warn("WebSocket state change failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			continue
		}
		s.hub.broadcast(s.outlet.Snapshot())
	}
}

// writePump sends queued snapshots and keepalive pings.
func (s *Server) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(snap); err != nil {
				logging.LogWebSocketEvent(c.conn.RemoteAddr().String(), "write_failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

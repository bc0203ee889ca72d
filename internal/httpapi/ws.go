package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/casthq/warden/internal/events"
)

// wsWriteTimeout bounds each frame write.
const wsWriteTimeout = 10 * time.Second

// wsSendBuffer is the per-client outbound queue. A full queue drops the
// frame rather than block the event bus.
const wsSendBuffer = 64

// wsClient is one connected event-push subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsClient) enqueue(payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		// Slow consumer; the frame is dropped.
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsClient) writeLoop(log *zap.Logger) {
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				c.close()
				return
			}
		}
	}
}

// handleWS upgrades the connection, sends the initial agent snapshot,
// and forwards every bus event until the peer disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
	go client.writeLoop(s.log)

	initial, err := json.Marshal(map[string]any{
		"type": "initial_state",
		"data": map[string]any{"agents": s.orch.GetAllAgents()},
	})
	if err != nil {
		s.log.Error("encoding initial state", zap.Error(err))
		client.close()
		return
	}
	client.enqueue(initial)

	unsubscribe := s.bus.Subscribe(func(evt events.Event) {
		payload, err := json.Marshal(evt)
		if err != nil {
			return
		}
		client.enqueue(payload)
	})

	s.log.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	// Read loop: the client sends nothing meaningful; reads detect close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	unsubscribe()
	client.close()
	s.log.Debug("websocket client disconnected", zap.String("remote", r.RemoteAddr))
}

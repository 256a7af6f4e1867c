package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guardvision/guardvision/internal/monitor/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// client holds at most one pending frame; a newer frame replaces an unsent one.
type client struct {
	conn *websocket.Conn
	send chan model.Frame
	done chan struct{}
}

// Render pushes f to every websocket client without blocking.
func (s *Server) Render(f model.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.offer(f)
	}
}

func (c *client) offer(f model.Frame) {
	for {
		select {
		case c.send <- f:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan model.Frame, 1), done: make(chan struct{})}

	// Registered before the current frame is read, so no publish falls in between.
	s.mu.Lock()
	s.clients[c] = struct{}{}
	c.offer(s.nav.Frame())
	s.mu.Unlock()
	s.log.Debug("frame stream opened", "remote", r.RemoteAddr)

	go s.readPump(c)
	s.writePump(c)

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = conn.Close()
	s.log.Debug("frame stream closed", "remote", r.RemoteAddr)
}

// readPump discards client messages and closes done when the peer goes away.
func (s *Server) readPump(c *client) {
	defer close(c.done)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
	}
}

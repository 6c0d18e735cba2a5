package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/chat"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeDeadline = 10 * time.Second
)

// Client is one live WebSocket connection. Its read pump feeds inbound frames
// to the router sequentially, so every event for this session completes
// before the next one starts; its write pump drains the send channel filled
// by the hub.
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	router    *chat.Router
	addr      string
	closed    bool
	limiter   *rateLimiter
	log       *slog.Logger
}

// NewClient wraps an upgraded connection. The session id must already be
// known to the router via HandleConnect.
func NewClient(conn *websocket.Conn, hub *Hub, router *chat.Router, sessionID, addr string, cfg Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       hub,
		router:    router,
		addr:      addr,
		limiter:   newRateLimiter(cfg.RateLimit()),
		log:       log,
	}
}

func (c *Client) readPump() {
	defer func() {
		// Transport disconnect always runs the full lifecycle teardown:
		// room cleanup, presence removal, then hub detach.
		c.router.HandleDisconnect(c.sessionID)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection", "session", c.sessionID, "error", err)
		}
	}()

	c.configureRead()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.allow() {
			c.log.Warn("rate limit exceeded, discarding frame", "session", c.sessionID, "addr", c.addr)
			continue
		}
		c.router.Dispatch(c.sessionID, frame)
	}
}

func (c *Client) configureRead() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting read deadline", "session", c.sessionID, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame exceeded maximum size", "session", c.sessionID, "addr", c.addr)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("client disconnected", "session", c.sessionID, "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("connection closed", "session", c.sessionID, "error", err)
	default:
		c.log.Warn("websocket read error", "session", c.sessionID, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection", "session", c.sessionID, "error", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.writeFrame(frame) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFrame writes one frame per WebSocket message. Events are not batched:
// each frame is a standalone JSON envelope the client decodes independently.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing frame", "session", c.sessionID, "error", err)
		}
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}

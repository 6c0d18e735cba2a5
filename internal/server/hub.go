package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/chat"
)

// Hub owns the live WebSocket connections, keyed by session id, and
// implements chat.Sender so the router can address individual sessions or
// broadcast to everyone. Registration, unregistration, and shutdown run on
// the hub's event loop; sends take the read lock only.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
}

// NewHub creates a hub ready to manage connections. Call Run in its own
// goroutine before accepting upgrades.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub's event loop: it attaches new clients, detaches closed ones,
// and tears everything down on shutdown. It returns when Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			client.closed = false
			h.clients[client.sessionID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client registered", "session", client.sessionID, "addr", client.addr, "total", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
				client.closed = true
				count := len(h.clients)
				h.mu.Unlock()
				close(client.send)
				h.log.Info("client unregistered", "session", client.sessionID, "total", count)
			} else {
				h.mu.Unlock()
			}
		}
	}
}

// Register hands a new client to the hub's event loop, which launches its
// read and write pumps.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Send delivers one event to a single session. Unknown sessions and sessions
// whose send buffer is full are dropped; a full buffer also disconnects the
// client, matching broadcast behavior.
func (h *Hub) Send(sessionID string, event chat.EventType, data any) {
	frame, err := chat.MarshalEnvelope(event, data)
	if err != nil {
		h.log.Error("marshal outbound event failed", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !h.safeSend(client, frame) {
		h.removeFailed([]*Client{client})
	}
}

// Broadcast delivers one event to every connected session, registered or not.
func (h *Hub) Broadcast(event chat.EventType, data any) {
	frame, err := chat.MarshalEnvelope(event, data)
	if err != nil {
		h.log.Error("marshal broadcast event failed", "event", event, "error", err)
		return
	}

	var failed []*Client
	for _, client := range h.clientSnapshot() {
		if !h.safeSend(client, frame) {
			failed = append(failed, client)
		}
	}
	h.removeFailed(failed)
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("recovered from send on closed channel", "session", client.sessionID, "panic", r)
		}
	}()

	// Hold the lock for the entire send so unregistration cannot close the
	// channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	current, ok := h.clients[client.sessionID]
	if !ok || current != client || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

func (h *Hub) clientSnapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) removeFailed(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	var channels []chan []byte
	for _, client := range failed {
		if current, ok := h.clients[client.sessionID]; ok && current == client {
			delete(h.clients, client.sessionID)
			client.closed = true
			channels = append(channels, client.send)
			h.log.Warn("client removed due to full send buffer", "session", client.sessionID)
		}
	}
	h.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

func (h *Hub) closeAllClients() {
	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing client connection", "session", client.sessionID, "error", err)
			}
		}
	}
	h.log.Info("closed all client connections", "count", len(clients))
}

// Shutdown stops the event loop, closes every connection, and waits for all
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}

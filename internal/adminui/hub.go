// Package adminui serves a live view of the audit log: a websocket that
// streams new audit.Entry records as they are appended, and an HTTP
// snapshot endpoint over the ring buffer of recently seen entries.
package adminui

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/openpep/pepd/internal/audit"
	"github.com/openpep/pepd/internal/logging"
)

var log = logging.New("adminui")

const (
	writeDeadline = 5 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans out audit entries to connected websocket clients and keeps a
// bounded ring buffer so new clients can catch up on recent history.
type Hub struct {
	mutex   sync.RWMutex
	clients map[string]*client

	buffer *ringBuffer

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

// NewHub builds a Hub with a ring buffer holding the last capacity entries.
// Register it with a writer via RegisterWith so it receives new entries.
func NewHub(capacity int) *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		buffer:     newRingBuffer(capacity),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// RegisterWith wires the hub as the writer's live-tail observer.
func (h *Hub) RegisterWith(w *audit.Writer) {
	w.Observe(h.Publish)
}

// Publish appends entry to the ring buffer and fans it out to clients. It is
// the audit.Writer observer callback, but may also be called directly (e.g.
// from tests).
func (h *Hub) Publish(entry audit.Entry) {
	h.buffer.add(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("marshal audit entry for broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("dropping broadcast: channel full")
	}
}

// Run drives the hub's event loop. It blocks; call it from its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.id] = c
			h.mutex.Unlock()

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
			}
			h.mutex.Unlock()
			c.close()

		case msg := <-h.broadcast:
			for _, c := range h.snapshotClients() {
				select {
				case c.send <- msg:
				default:
					log.Printf("dropping message for client %s: send buffer full", c.id)
				}
			}
		}
	}
}

func (h *Hub) snapshotClients() []*client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// ServeWebSocket upgrades the connection and streams the ring buffer's
// backlog followed by live entries.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	backlog := h.buffer.all()
	for _, entry := range backlog {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(gws.TextMessage, data); err != nil {
			conn.Close()
			return
		}
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 256), closed: make(chan struct{})}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

type client struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	closed  chan struct{}
	closeMu sync.Mutex
}

func (c *client) readPump(h *Hub) {
	defer func() { h.unregister <- c }()

	c.conn.SetReadLimit(1 << 16)
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.send)
		_ = c.conn.Close()
	}
}

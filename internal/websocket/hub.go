package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tahcohcat/lector-web/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Dispatcher receives what browsers send. Rooms are reader panel IDs.
type Dispatcher interface {
	ClientJoined(room string)
	ClientMessage(room string, data []byte)
}

type roomMessage struct {
	room string
	data []byte
}

// Hub fans messages out to every browser tab attached to a room.
type Hub struct {
	rooms      map[string]map[*Client]bool
	send       chan roomMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	upgrader   websocket.Upgrader
	dispatcher Dispatcher
	logger     *logger.Log
}

type Client struct {
	hub  *Hub
	room string
	conn *websocket.Conn
	send chan []byte
}

// NewHub accepts upgrades from same-host pages and from allowedOrigins.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		send:       make(chan roomMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		logger:     logger.New().WithField("component", "hub"),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// not a browser
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// SetDispatcher must be called before Run.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Run delivers messages until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
			}
			h.rooms = map[string]map[*Client]bool{}
			return nil

		case client := <-h.register:
			clients, ok := h.rooms[client.room]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.room] = clients
			}
			clients[client] = true
			h.logger.Debug(fmt.Sprintf("Client connected to %s. Total: %d", client.room, len(clients)))

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.room]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					h.logger.Debug(fmt.Sprintf("Client disconnected from %s. Total: %d", client.room, len(clients)))
				}
				if len(clients) == 0 {
					delete(h.rooms, client.room)
				}
			}

		case msg := <-h.send:
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.data:
				default:
					close(client.send)
					delete(h.rooms[msg.room], client)
				}
			}
		}
	}
}

// Send queues data for every client in room. It never blocks once the hub
// has stopped.
func (h *Hub) Send(room string, data []byte) {
	select {
	case h.send <- roomMessage{room: room, data: data}:
	case <-h.done:
	}
}

// SendJSON encodes v and sends it to room.
func (h *Hub) SendJSON(room string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode websocket message: %w", err)
	}
	h.Send(room, data)
	return nil
}

// ServeWS upgrades the request and attaches the connection to room.
func (h *Hub) ServeWS(room string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	client := &Client{hub: h, room: room, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	if h.dispatcher != nil {
		h.dispatcher.ClientJoined(room)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("WebSocket error")
			}
			return
		}
		if c.hub.dispatcher != nil {
			c.hub.dispatcher.ClientMessage(c.room, data)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.WithError(err).Warn("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

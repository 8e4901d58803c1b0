package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/grade"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type liveClient struct {
	schoolID string
	userID   string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub fans grade events out to the websocket clients of each school.
type Hub struct {
	logger  core.Logger
	mu      sync.Mutex
	clients map[string]map[*liveClient]struct{}
	closed  bool
}

var _ grade.Notifier = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]map[*liveClient]struct{}),
	}
}

// Notify drops the event for clients whose buffer is full.
func (h *Hub) Notify(schoolID string, evt grade.Event) {
	msg, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding live event: %v", err), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[schoolID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn(fmt.Sprintf("live client %s is lagging, event dropped", c.userID))
		}
	}
}

// Clients returns the number of connected clients of a school.
func (h *Hub) Clients(schoolID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[schoolID])
}

func (h *Hub) register(c *liveClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.clients[c.schoolID] == nil {
		h.clients[c.schoolID] = make(map[*liveClient]struct{})
	}
	h.clients[c.schoolID][c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.schoolID][c]; !ok {
		return
	}
	delete(h.clients[c.schoolID], c)
	if len(h.clients[c.schoolID]) == 0 {
		delete(h.clients, c.schoolID)
	}
	close(c.send)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for schoolID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, schoolID)
	}
}

func (h *Hub) serve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		h.logger.Warn(fmt.Sprintf("upgrading live connection: %v", err), err)
		return nil
	}

	c := &liveClient{
		schoolID: ctx.Param("schoolId"),
		userID:   claims.Subject,
		conn:     conn,
		send:     make(chan []byte, liveSendBuffer),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(liveWriteWait))
		return conn.Close()
	}

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// readPump only handles control frames; clients don't send events.
func (h *Hub) readPump(c *liveClient) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(fmt.Sprintf("live client %s disconnected: %v", c.userID, err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

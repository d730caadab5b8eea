// Package notify pushes workflow events to connected browsers over websocket.
package notify

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vistorias/pkg/auth"
)

const (
	EventVistoriaAtribuida = "vistoria_atribuida"
	EventVistoriaStatus    = "vistoria_status"
	EventFotoAdicionada    = "foto_adicionada"
	EventLaudoGerado       = "laudo_gerado"
	EventLotePago          = "lote_pago"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingEvery    = 25 * time.Second
)

// Event is the envelope sent to clients. Para is the user the event concerns;
// admins receive every event.
type Event struct {
	Type       string      `json:"type"`
	VistoriaID uint        `json:"vistoriaId,omitempty"`
	Para       uint        `json:"-"`
	Payload    interface{} `json:"payload,omitempty"`
	At         time.Time   `json:"at"`
}

// TokenParser validates the token passed on the websocket URL.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type client struct {
	conn   *websocket.Conn
	userID uint
	admin  bool
	send   chan Event
	once   sync.Once
}

// Hub keeps one entry per open browser connection.
type Hub struct {
	upgrader websocket.Upgrader
	tokens   TokenParser
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(tokens TokenParser, log *zap.Logger, allowedOrigin string) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
		tokens:  tokens,
		log:     log,
		clients: map[*client]struct{}{},
	}
}

// HandleWS authenticates with ?token= (browsers cannot set headers on
// websocket requests) or a Bearer header, then upgrades.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := h.tokens.Parse(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Uint("user", claims.UserID), zap.Error(err))
		return
	}
	c := &client{conn: conn, userID: claims.UserID, admin: claims.IsAdmin(), send: make(chan Event, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("ws connected", zap.Uint("user", c.userID), zap.Bool("admin", c.admin))
	go h.writeLoop(c)
	go h.readLoop(c)
}

// Publish fans an event out without blocking; slow clients are dropped.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.admin && c.userID != ev.Para {
			continue
		}
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.log.Warn("ws client too slow, dropping", zap.Uint("user", c.userID))
		h.remove(c)
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects everyone; used on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		_ = c.conn.Close()
		h.log.Debug("ws disconnected", zap.Uint("user", c.userID))
	})
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				h.remove(c)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop only drains control frames; clients never send data.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

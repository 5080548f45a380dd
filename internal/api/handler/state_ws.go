package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

const (
	streamSendBuffer = 32
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

var stateUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one frame on the state stream.
type StreamMessage struct {
	Type         string               `json:"type"` // state, notification
	State        *stateResponse       `json:"state,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// StateStream pushes auth-state snapshots and notifications to connected
// UI shells. It also implements ports.Notifier.
type StateStream struct {
	sessions ports.SessionService
	theme    ThemeReader
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewStateStream(sessions ports.SessionService, theme ThemeReader, log zerolog.Logger) *StateStream {
	return &StateStream{
		sessions: sessions,
		theme:    theme,
		log:      log,
		clients:  make(map[*streamClient]struct{}),
	}
}

// Notify broadcasts a notification to every connected client.
func (s *StateStream) Notify(n domain.Notification) {
	s.broadcast(StreamMessage{Type: "notification", Notification: &n, Timestamp: time.Now().UTC()})
}

// Clients returns the number of connected clients.
func (s *StateStream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handle upgrades GET /auth/state/stream and streams until the client leaves.
//
// @Summary      Auth state stream
// @Tags         auth
// @Success      101
// @Router       /auth/state/stream [get]
func (s *StateStream) Handle(c echo.Context) error {
	conn, err := stateUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("state stream upgrade failed")
		return nil
	}

	client := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	s.enqueue(client, s.stateMessage(s.sessions.State()))
	cancel := s.sessions.Observe(func(st ports.AuthState) {
		s.enqueue(client, s.stateMessage(st))
	})

	go s.writePump(client)
	s.readPump(client)

	cancel()
	s.mu.Lock()
	delete(s.clients, client)
	close(client.send)
	s.mu.Unlock()
	return nil
}

func (s *StateStream) stateMessage(st ports.AuthState) StreamMessage {
	resp := toStateResponse(st, s.theme.Current())
	return StreamMessage{Type: "state", State: &resp, Timestamp: time.Now().UTC()}
}

func (s *StateStream) broadcast(msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("state stream marshal failed")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		s.offer(c, data)
	}
}

func (s *StateStream) enqueue(c *streamClient, msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("state stream marshal failed")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[c]; ok {
		s.offer(c, data)
	}
}

// offer never blocks: publishers run under the session service's lock.
// Callers hold s.mu.
func (s *StateStream) offer(c *streamClient, data []byte) {
	select {
	case c.send <- data:
	default:
		s.log.Warn().Msg("state stream client too slow, dropping frame")
	}
}

func (s *StateStream) readPump(c *streamClient) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("state stream read error")
			}
			return
		}
	}
}

func (s *StateStream) writePump(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

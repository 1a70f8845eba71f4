package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
)

// Session is one push connection. userID is set before the session is
// registered and never changes afterwards; an empty userID means anonymous.
type Session struct {
	ID     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	// subs is guarded by the hub lock.
	subs map[string]struct{}

	closeOnce      sync.Once
	closed         chan struct{}
	disconnectOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, buffer int, logger zerolog.Logger) *Session {
	return &Session{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, buffer),
		subs:   make(map[string]struct{}),
		closed: make(chan struct{}),
		logger: logger.With().Str("session_id", id).Logger(),
	}
}

// UserID returns the bound user, or "" for an anonymous session.
func (s *Session) UserID() string {
	return s.userID
}

// Anonymous reports whether the session connected without a valid token.
func (s *Session) Anonymous() bool {
	return s.userID == ""
}

func (s *Session) kind() string {
	if s.Anonymous() {
		return "anonymous"
	}
	return "bound"
}

// enqueue hands frame to the writer. A full buffer means the peer is not
// keeping up, so the connection is closed instead of stalling fan-out.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		metrics.FanoutDropped.Inc()
		s.logger.Warn().Msg("send buffer full, closing slow session")
		s.close()
		return false
	}
}

// close signals the writer to send a close frame and drop the socket, which
// in turn ends the read loop.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *Session) readPump(m *Manager) {
	defer m.Disconnect(s)

	s.conn.SetReadLimit(m.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("read error")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
		m.HandleEvent(s, raw)
	}
}

func (s *Session) writePump(m *Manager) {
	ticker := time.NewTicker(m.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.closed:
			_ = s.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

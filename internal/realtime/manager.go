package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/ids"
	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/presence"
)

// Verifier resolves a bearer token to a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// Publisher routes a message to the channels that should see it.
type Publisher interface {
	Publish(msg models.Message) int
}

// Config holds transport timings and limits.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string
}

// DefaultConfig returns production timings.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 8 * 1024,
	}
}

// Manager owns the session lifecycle: connect, per-event handling and
// disconnect. It also broadcasts presence transitions to every session.
type Manager struct {
	hub      *Hub
	presence *presence.Table
	verifier Verifier
	router   Publisher
	cfg      Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewManager wires a manager and registers it as a presence listener.
func NewManager(hub *Hub, table *presence.Table, verifier Verifier, router Publisher, logger zerolog.Logger, cfg Config) *Manager {
	defaults := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	m := &Manager{
		hub:      hub,
		presence: table,
		verifier: verifier,
		router:   router,
		cfg:      cfg,
		logger:   logger.With().Str("component", "realtime").Logger(),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	table.AddListener(m)
	return m
}

// PresenceChanged broadcasts a transition to every open session.
func (m *Manager) PresenceChanged(e presence.Event) {
	typ := models.EventUserOffline
	if e.Online {
		typ = models.EventUserOnline
	}
	frame, err := models.NewEnvelope(typ, models.PresencePayload{UserID: e.UserID})
	if err != nil {
		m.logger.Error().Err(err).Msg("encode presence event")
		return
	}
	m.hub.Broadcast(frame)
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(m.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range m.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and runs the session until it disconnects.
// The token comes from the "token" query parameter or a bearer header.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := m.Connect(conn, TokenFromRequest(r))
	go s.writePump(m)
	s.readPump(m)
}

// TokenFromRequest extracts a credential from the query or headers.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Connect registers a session for conn. A valid token binds the session to
// its user and subscribes it to the user's private channel; anything else
// yields an anonymous session that stays open.
func (m *Manager) Connect(conn *websocket.Conn, token string) *Session {
	s := newSession(ids.NewSessionID(), conn, m.cfg.SendBuffer, m.logger)

	if token != "" {
		userID, err := m.verifier.Verify(token)
		if err != nil {
			s.logger.Debug().Err(err).Msg("token rejected, continuing anonymously")
		} else {
			s.userID = userID
			s.logger = s.logger.With().Str("user_id", userID).Logger()
		}
	}

	m.hub.add(s)
	metrics.ActiveSessions.WithLabelValues(s.kind()).Inc()

	m.reply(s, models.EventSession, models.SessionPayload{
		SessionID: s.ID,
		UserID:    s.userID,
		Anonymous: s.Anonymous(),
	})

	if !s.Anonymous() {
		m.hub.Subscribe(s, UserChannel(s.userID))
		m.presence.Bind(s.userID, s.ID)
	}

	s.logger.Info().Bool("anonymous", s.Anonymous()).Msg("session connected")
	return s
}

// HandleEvent processes one inbound frame. Frames of a session are handled
// one at a time by its read loop.
func (m *Manager) HandleEvent(s *Session, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.replyError(s, "invalid json")
		return
	}

	switch env.Type {
	case models.EventJoinRoom, models.EventLeaveRoom:
		var p models.RoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			m.replyError(s, "roomId is required")
			return
		}
		// Stored messages carry the trimmed id, so the channel must too.
		roomID := strings.TrimSpace(p.RoomID)
		if roomID == "" {
			m.replyError(s, "roomId is required")
			return
		}
		if env.Type == models.EventJoinRoom {
			m.hub.Subscribe(s, RoomChannel(roomID))
		} else {
			m.hub.Unsubscribe(s, RoomChannel(roomID))
		}

	case models.EventSendMessage:
		if s.Anonymous() {
			m.replyError(s, "authentication required")
			return
		}
		var msg models.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			m.replyError(s, "invalid message")
			return
		}
		msg.From = s.userID
		if err := msg.Validate(); err != nil {
			m.replyError(s, err.Error())
			return
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		metrics.MessagesPublished.WithLabelValues("push").Inc()
		m.router.Publish(msg)

	case models.EventPing:
		m.reply(s, models.EventPong, nil)

	default:
		m.replyError(s, "unsupported event type")
	}
}

// Disconnect releases everything the session holds. It runs at most once per
// session no matter how many paths call it.
func (m *Manager) Disconnect(s *Session) {
	s.disconnectOnce.Do(func() {
		m.hub.remove(s)
		if !s.Anonymous() {
			m.presence.Unbind(s.userID, s.ID)
		}
		s.close()
		metrics.ActiveSessions.WithLabelValues(s.kind()).Dec()
		s.logger.Info().Msg("session disconnected")
	})
}

// Close disconnects every open session.
func (m *Manager) Close() {
	for _, s := range m.hub.snapshot() {
		m.Disconnect(s)
	}
}

func (m *Manager) reply(s *Session, typ string, payload any) {
	frame, err := models.NewEnvelope(typ, payload)
	if err != nil {
		m.logger.Error().Err(err).Str("type", typ).Msg("encode reply")
		return
	}
	s.enqueue(frame)
}

func (m *Manager) replyError(s *Session, msg string) {
	m.reply(s, models.EventError, models.ErrorPayload{Message: msg})
}

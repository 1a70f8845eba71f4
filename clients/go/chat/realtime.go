package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// ErrNotConnected is returned by writes while no connection is up.
var ErrNotConnected = errors.New("not connected")

// RealtimeConfig configures the push connection.
type RealtimeConfig struct {
	AutoReconnect bool
	// MaxReconnectAttempts of zero means retry forever.
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c *RealtimeConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 500 * time.Millisecond
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
}

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

// nextDelay backs off exponentially with jitter. A connection that stayed
// up for a minute starts the sequence over.
func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > time.Minute {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// Realtime is a push connection. Handlers run on the read goroutine in
// arrival order and must not block.
type Realtime struct {
	wsURL string
	cfg   RealtimeConfig
	recon *reconnector

	mu   sync.Mutex
	conn *websocket.Conn

	hmu          sync.RWMutex
	onSession    []func(models.SessionPayload)
	onMessage    []func(models.Message)
	onPresence   []func(userID string, online bool)
	onError      []func(message string)
	onConnected  []func()
	onReconnects []func(attempt int, delay time.Duration)
}

// NewRealtime creates a push client for the server at baseURL.
func NewRealtime(baseURL, token string, cfg RealtimeConfig) *Realtime {
	cfg.defaults()
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws"
	if token != "" {
		wsURL += "?token=" + url.QueryEscape(token)
	}
	return &Realtime{
		wsURL: wsURL,
		cfg:   cfg,
		recon: &reconnector{
			baseDelay:   cfg.ReconnectBaseDelay,
			maxDelay:    cfg.ReconnectMaxDelay,
			maxAttempts: cfg.MaxReconnectAttempts,
		},
	}
}

// Realtime creates a push client using c's base URL and token.
func (c *Client) Realtime(cfg RealtimeConfig) *Realtime {
	return NewRealtime(c.BaseURL, c.Token, cfg)
}

func (rt *Realtime) OnSession(h func(models.SessionPayload)) {
	rt.hmu.Lock()
	rt.onSession = append(rt.onSession, h)
	rt.hmu.Unlock()
}

func (rt *Realtime) OnMessage(h func(models.Message)) {
	rt.hmu.Lock()
	rt.onMessage = append(rt.onMessage, h)
	rt.hmu.Unlock()
}

func (rt *Realtime) OnPresence(h func(userID string, online bool)) {
	rt.hmu.Lock()
	rt.onPresence = append(rt.onPresence, h)
	rt.hmu.Unlock()
}

func (rt *Realtime) OnError(h func(message string)) {
	rt.hmu.Lock()
	rt.onError = append(rt.onError, h)
	rt.hmu.Unlock()
}

// OnConnected runs after every successful (re)connect. Pushes sent while
// disconnected are lost, so this is where a client re-fetches.
func (rt *Realtime) OnConnected(h func()) {
	rt.hmu.Lock()
	rt.onConnected = append(rt.onConnected, h)
	rt.hmu.Unlock()
}

func (rt *Realtime) OnReconnecting(h func(attempt int, delay time.Duration)) {
	rt.hmu.Lock()
	rt.onReconnects = append(rt.onReconnects, h)
	rt.hmu.Unlock()
}

// Run connects and reads until ctx is done, reconnecting when configured
// to. It returns the last connection error, or ctx.Err().
func (rt *Realtime) Run(ctx context.Context) error {
	for {
		err := rt.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !rt.cfg.AutoReconnect || !rt.recon.shouldReconnect() {
			return err
		}

		delay := rt.recon.nextDelay()
		rt.hmu.RLock()
		for _, h := range rt.onReconnects {
			h(rt.recon.attempt, delay)
		}
		rt.hmu.RUnlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (rt *Realtime) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, rt.wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The server announces the session first.
	_, data, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("read session event: %w", err)
	}
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != models.EventSession {
		return fmt.Errorf("expected %q event, got %q", models.EventSession, env.Type)
	}

	rt.mu.Lock()
	rt.conn = conn
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		rt.conn = nil
		rt.mu.Unlock()
	}()

	rt.recon.markConnected()
	rt.dispatch(env)
	rt.hmu.RLock()
	for _, h := range rt.onConnected {
		h()
	}
	rt.hmu.RUnlock()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var env models.Envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		rt.dispatch(env)
	}
}

func (rt *Realtime) dispatch(env models.Envelope) {
	rt.hmu.RLock()
	defer rt.hmu.RUnlock()

	switch env.Type {
	case models.EventSession:
		var p models.SessionPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			for _, h := range rt.onSession {
				h(p)
			}
		}
	case models.EventMessage:
		var m models.Message
		if json.Unmarshal(env.Payload, &m) == nil {
			for _, h := range rt.onMessage {
				h(m)
			}
		}
	case models.EventUserOnline, models.EventUserOffline:
		var p models.PresencePayload
		if json.Unmarshal(env.Payload, &p) == nil {
			online := env.Type == models.EventUserOnline
			for _, h := range rt.onPresence {
				h(p.UserID, online)
			}
		}
	case models.EventError:
		var p models.ErrorPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			for _, h := range rt.onError {
				h(p.Message)
			}
		}
	}
}

// Send writes one event over the current connection.
func (rt *Realtime) Send(ctx context.Context, typ string, payload any) error {
	rt.mu.Lock()
	conn := rt.conn
	rt.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := models.NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// JoinRoom subscribes this connection to a room's pushes.
func (rt *Realtime) JoinRoom(ctx context.Context, roomID string) error {
	return rt.Send(ctx, models.EventJoinRoom, models.RoomPayload{RoomID: roomID})
}

func (rt *Realtime) LeaveRoom(ctx context.Context, roomID string) error {
	return rt.Send(ctx, models.EventLeaveRoom, models.RoomPayload{RoomID: roomID})
}

// Connected reports whether a connection is currently up.
func (rt *Realtime) Connected() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.conn != nil
}

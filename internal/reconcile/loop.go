// Package reconcile keeps a client's view of one open conversation in step
// with the server. Every trigger re-fetches the full ordered history and
// replaces the view; pushes only hint that a fetch is worthwhile, and a
// timer covers pushes that never arrive.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// DefaultInterval is the polling backstop while a conversation is open.
const DefaultInterval = 3 * time.Second

// State is the lifecycle of a view.
type State int

const (
	Idle State = iota
	Loading
	Synced
	// Stale means the last fetch failed. The previous messages are kept.
	Stale
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Synced:
		return "synced"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Conversation identifies what a view shows: a direct conversation with
// Peer, or a room. The zero value means nothing is open.
type Conversation struct {
	Peer string
	Room string
}

// WithPeer opens the direct conversation with userID.
func WithPeer(userID string) Conversation { return Conversation{Peer: userID} }

// InRoom opens a room.
func InRoom(roomID string) Conversation { return Conversation{Room: roomID} }

func (c Conversation) IsZero() bool { return c.Peer == "" && c.Room == "" }

// Matches reports whether msg belongs in c as seen by self.
func (c Conversation) Matches(self string, msg models.Message) bool {
	if c.Room != "" {
		return msg.RoomID == c.Room
	}
	return c.Peer != "" && msg.Involves(self, c.Peer)
}

// Fetcher loads full histories. The Go client SDK implements it over HTTP.
type Fetcher interface {
	Conversation(ctx context.Context, peerID string) ([]models.Message, error)
	RoomMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// View is a snapshot of the loop.
type View struct {
	Conversation Conversation
	State        State
	Messages     []models.Message
	// Err is the cause of a Stale state.
	Err error
}

// Options tune a Loop. Zero values take defaults.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	// OnChange observes every snapshot, in order. It runs with the loop
	// locked and must not call back into the Loop.
	OnChange func(View)
	Logger   zerolog.Logger
}

// Loop reconciles one open conversation at a time.
type Loop struct {
	fetcher  Fetcher
	self     string
	interval time.Duration
	timeout  time.Duration
	onChange func(View)
	logger   zerolog.Logger

	mu      sync.Mutex
	view    View
	gen     uint64 // bumped on Select and Close; stale fetches compare against it
	fetchID uint64 // identifies the fetch whose result is still wanted
	cancel  context.CancelFunc
	timer   *time.Timer
	loading bool
	pending bool // a trigger arrived mid-fetch
	closed  bool
	fetches sync.WaitGroup
}

// New creates an idle loop for user self.
func New(fetcher Fetcher, self string, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Loop{
		fetcher:  fetcher,
		self:     self,
		interval: opts.Interval,
		timeout:  opts.FetchTimeout,
		onChange: opts.OnChange,
		logger:   opts.Logger.With().Str("component", "reconcile").Logger(),
	}
}

// Select opens c, dropping whatever was open before. Selecting the zero
// Conversation returns the loop to Idle.
func (l *Loop) Select(c Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	l.resetLocked()
	l.view = View{Conversation: c, State: Idle}
	if c.IsZero() {
		l.emitLocked()
		return
	}
	l.startLocked()
}

// Notify is called for every pushed message. Only messages belonging to the
// open conversation trigger a fetch.
func (l *Loop) Notify(msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.view.Conversation.IsZero() || !l.view.Conversation.Matches(l.self, msg) {
		return
	}
	l.triggerLocked()
}

// Refresh forces a fetch of the open conversation.
func (l *Loop) Refresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.view.Conversation.IsZero() {
		return
	}
	l.triggerLocked()
}

// View returns the current snapshot.
func (l *Loop) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Close stops the timer, abandons any in-flight fetch and waits for it to
// return. The loop cannot be reused.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.resetLocked()
	l.view = View{State: Idle}
	l.emitLocked()
	l.mu.Unlock()

	l.fetches.Wait()
}

// resetLocked invalidates the current generation.
func (l *Loop) resetLocked() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.loading = false
	l.pending = false
}

func (l *Loop) triggerLocked() {
	if l.loading {
		l.pending = true
		return
	}
	l.startLocked()
}

// startLocked begins a fetch, abandoning any in flight, and arms the next
// tick. The timer runs from fetch start so a stalled fetch cannot hold off
// the next one for longer than one interval.
func (l *Loop) startLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.loading = true
	l.pending = false
	l.view.State = Loading
	l.emitLocked()

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	l.cancel = cancel
	l.fetchID++
	gen, id, conv := l.gen, l.fetchID, l.view.Conversation

	l.fetches.Add(1)
	go l.fetch(ctx, cancel, gen, id, conv)

	l.timer = time.AfterFunc(l.interval, func() { l.tick(gen) })
}

func (l *Loop) fetch(ctx context.Context, cancel context.CancelFunc, gen, id uint64, conv Conversation) {
	defer l.fetches.Done()
	defer cancel()

	var (
		msgs []models.Message
		err  error
	)
	if conv.Room != "" {
		msgs, err = l.fetcher.RoomMessages(ctx, conv.Room)
	} else {
		msgs, err = l.fetcher.Conversation(ctx, conv.Peer)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || id != l.fetchID || l.closed {
		return
	}

	l.loading = false
	l.cancel = nil
	if err != nil {
		l.logger.Warn().Err(err).Str("peer", conv.Peer).Str("room", conv.Room).Msg("fetch failed")
		l.view.State = Stale
		l.view.Err = err
	} else {
		l.view.State = Synced
		l.view.Messages = msgs
		l.view.Err = nil
	}
	l.emitLocked()

	if l.pending {
		l.startLocked()
	}
}

// tick fires once per interval. A fetch still outstanding at that point is
// presumed stuck and replaced.
func (l *Loop) tick(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.closed {
		return
	}
	l.startLocked()
}

func (l *Loop) snapshotLocked() View {
	v := l.view
	v.Messages = append([]models.Message(nil), l.view.Messages...)
	return v
}

func (l *Loop) emitLocked() {
	if l.onChange != nil {
		l.onChange(l.snapshotLocked())
	}
}

package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

// RosterSync mirrors presence transitions into the user store's online flag.
// Writes happen on one goroutine, in transition order.
type RosterSync struct {
	users   store.UserStore
	events  chan Event
	logger  zerolog.Logger
	timeout time.Duration
}

// NewRosterSync creates a mirror with room for buffer pending transitions.
func NewRosterSync(users store.UserStore, logger zerolog.Logger, buffer int) *RosterSync {
	if buffer <= 0 {
		buffer = 1024
	}
	return &RosterSync{
		users:   users,
		events:  make(chan Event, buffer),
		logger:  logger.With().Str("component", "roster_sync").Logger(),
		timeout: 5 * time.Second,
	}
}

// PresenceChanged queues e. When the queue is full the transition is
// dropped; readers of the roster overlay the live table anyway.
func (r *RosterSync) PresenceChanged(e Event) {
	select {
	case r.events <- e:
	default:
		r.logger.Warn().Str("user_id", e.UserID).Bool("online", e.Online).Msg("roster sync queue full, dropping transition")
	}
}

// Reset marks every stored user offline. Call it before accepting sessions
// so a previous crash does not leave stale flags.
func (r *RosterSync) Reset(ctx context.Context) error {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if !u.Online {
			continue
		}
		if err := r.users.SetUserOnline(ctx, u.ID, false); err != nil {
			return err
		}
	}
	return nil
}

// Run applies queued transitions until ctx is done.
func (r *RosterSync) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-r.events:
			r.apply(ctx, e)
		}
	}
}

func (r *RosterSync) apply(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.users.SetUserOnline(ctx, e.UserID, e.Online); err != nil {
		r.logger.Error().Err(err).Str("user_id", e.UserID).Msg("failed to persist presence")
	}
}

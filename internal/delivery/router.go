// Package delivery decides which push channels a message goes to.
package delivery

import (
	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/realtime"
)

// Fanout queues a frame to the sessions on any of the given channels and
// returns how many it reached.
type Fanout interface {
	Publish(frame []byte, channels ...string) int
}

// Router publishes messages to live sessions. Having no subscribers is
// normal and never an error.
type Router struct {
	fanout Fanout
	logger zerolog.Logger
}

// NewRouter creates a router over fanout.
func NewRouter(fanout Fanout, logger zerolog.Logger) *Router {
	return &Router{
		fanout: fanout,
		logger: logger.With().Str("component", "delivery").Logger(),
	}
}

// Channels returns the channels msg is delivered to: the room channel if the
// message has a room, else the recipient's channel, plus always the sender's
// own channel so their other tabs stay current.
func Channels(msg models.Message) []string {
	var out []string
	addr, _ := msg.Address()
	switch a := addr.(type) {
	case models.Room:
		out = append(out, realtime.RoomChannel(a.ID))
	case models.Direct:
		out = append(out, realtime.UserChannel(a.To))
	}
	if msg.From != "" {
		out = append(out, realtime.UserChannel(msg.From))
	}
	return out
}

// Publish encodes msg once and fans it out. Each session receives it at most
// once even when it sits on several of the target channels.
func (r *Router) Publish(msg models.Message) int {
	channels := Channels(msg)
	if len(channels) == 0 {
		return 0
	}

	frame, err := models.NewEnvelope(models.EventMessage, msg)
	if err != nil {
		r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("encode message event")
		return 0
	}

	n := r.fanout.Publish(frame, channels...)
	r.logger.Debug().
		Str("message_id", msg.ID).
		Strs("channels", channels).
		Int("sessions", n).
		Msg("message published")
	return n
}

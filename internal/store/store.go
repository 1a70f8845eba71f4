package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// ErrValidation marks a message the store refused to persist. The wrapped
// models error says why.
var ErrValidation = errors.New("validation failed")

// Error is a persistence failure. Nothing was written when it is returned
// from an append.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// MessageStore is the durable, append-only message log.
type MessageStore interface {
	// AppendMessage assigns id, createdAt and seq, then persists.
	AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error)
	// ListConversation returns both directions between a and b, oldest first.
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)
	// ListRoom returns a room's messages, oldest first.
	ListRoom(ctx context.Context, roomID string) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}

// UserStore holds the roster. GetUser returns nil, nil for unknown ids.
type UserStore interface {
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserOnline(ctx context.Context, id string, online bool) error
}

// DataStore defines the interface for persistent storage of users and
// messages. MemoryStore, SQLiteStore, PostgresStore and RedisStore implement it.
type DataStore interface {
	Close()
	Ping(ctx context.Context) error

	MessageStore
	UserStore
}

func validate(msg models.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func observe(backend, op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // memory, sqlite, postgres or redis
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (DataStore, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, errors.New("postgres backend requires DATABASE_URL")
		}
		if err := RunMigrations(ctx, opts.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case "redis":
		if opts.RedisURL == "" {
			return nil, errors.New("redis backend requires REDIS_URL")
		}
		return NewRedisStore(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Arjunan-lab/ChattingApp/internal/ids"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// appendLockKey serializes appends across processes sharing the database.
const appendLockKey = 0x63686174

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AppendMessage inserts msg under a transaction-scoped advisory lock so seq
// order and createdAt order agree.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	defer observe("postgres", "append", time.Now())

	if err := validate(msg); err != nil {
		return nil, err
	}

	msg.ID = ids.NewMessageID()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO messages (id, from_id, to_id, room_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5, GREATEST(
				clock_timestamp(),
				COALESCE((SELECT MAX(created_at) FROM messages), '-infinity'::timestamptz)
			))
			RETURNING seq, created_at
		`, msg.ID, msg.From, msg.To, msg.RoomID, msg.Content).Scan(&msg.Seq, &msg.CreatedAt)
	})
	if err != nil {
		return nil, wrap("append", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}

func (s *PostgresStore) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	defer observe("postgres", "list", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, from_id, to_id, room_id, content, created_at
		FROM messages
		WHERE room_id = '' AND ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))
		ORDER BY created_at, seq
	`, a, b)
	if err != nil {
		return nil, wrap("list conversation", err)
	}
	return scanPostgresMessages(rows)
}

func (s *PostgresStore) ListRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	defer observe("postgres", "list", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, from_id, to_id, room_id, content, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at, seq
	`, roomID)
	if err != nil {
		return nil, wrap("list room", err)
	}
	return scanPostgresMessages(rows)
}

func scanPostgresMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.From, &m.To, &m.RoomID, &m.Content, &m.CreatedAt); err != nil {
			return nil, wrap("scan message", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("scan message", err)
	}
	return messages, nil
}

func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, wrap("count messages", err)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, avatar, online, created_at
	`, ids.NewUserID(), name, email).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Avatar,
		&u.Online,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, wrap("create user", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, avatar, online, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Avatar,
		&u.Online,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("get user", err)
	}
	return u, nil
}

// ListUsers returns the roster sorted by name.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, avatar, online, created_at
		FROM users ORDER BY lower(name), id
	`)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &u.Online, &u.CreatedAt); err != nil {
			return nil, wrap("scan user", err)
		}
		users = append(users, u)
	}
	return users, wrap("list users", rows.Err())
}

func (s *PostgresStore) SetUserOnline(ctx context.Context, id string, online bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET online = $2 WHERE id = $1`, id, online)
	return wrap("set online", err)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Arjunan-lab/ChattingApp/internal/ids"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// SQLiteStore handles SQLite database operations. Timestamps are stored as
// unix microseconds so ordering is numeric.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer keeps the timestamp clamp and the seq assignment in step.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		online INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL DEFAULT '',
		room_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(from_id, to_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage inserts msg in a single statement. The timestamp is clamped
// to the newest stored one so createdAt never goes backwards.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	defer observe("sqlite", "append", time.Now())

	if err := validate(msg); err != nil {
		return nil, err
	}

	msg.ID = ids.NewMessageID()
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, from_id, to_id, room_id, content, created_at)
		SELECT ?, ?, ?, ?, ?, MAX(?, COALESCE(MAX(created_at), 0)) FROM messages
		RETURNING seq, created_at
	`, msg.ID, msg.From, msg.To, msg.RoomID, msg.Content, time.Now().UnixMicro()).Scan(&msg.Seq, &createdAt)
	if err != nil {
		return nil, wrap("append", err)
	}
	msg.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &msg, nil
}

func (s *SQLiteStore) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	defer observe("sqlite", "list", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, from_id, to_id, room_id, content, created_at
		FROM messages
		WHERE room_id = '' AND ((from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?))
		ORDER BY created_at, seq
	`, a, b, b, a)
	if err != nil {
		return nil, wrap("list conversation", err)
	}
	return scanSQLiteMessages(rows)
}

func (s *SQLiteStore) ListRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	defer observe("sqlite", "list", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, from_id, to_id, room_id, content, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at, seq
	`, roomID)
	if err != nil {
		return nil, wrap("list room", err)
	}
	return scanSQLiteMessages(rows)
}

func scanSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		var createdAt int64
		if err := rows.Scan(&m.Seq, &m.ID, &m.From, &m.To, &m.RoomID, &m.Content, &createdAt); err != nil {
			return nil, wrap("scan message", err)
		}
		m.CreatedAt = time.UnixMicro(createdAt).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("scan message", err)
	}
	return messages, nil
}

func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, wrap("count messages", err)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	u := &models.User{
		ID:        ids.NewUserID(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.CreatedAt.UnixMicro())
	if err != nil {
		return nil, wrap("create user", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar, online, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &u.Online, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("get user", err)
	}
	u.CreatedAt = time.UnixMicro(createdAt).UTC()
	return u, nil
}

// ListUsers returns the roster sorted by name.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, avatar, online, created_at
		FROM users ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &u.Online, &createdAt); err != nil {
			return nil, wrap("scan user", err)
		}
		u.CreatedAt = time.UnixMicro(createdAt).UTC()
		users = append(users, u)
	}
	return users, wrap("list users", rows.Err())
}

func (s *SQLiteStore) SetUserOnline(ctx context.Context, id string, online bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET online = ? WHERE id = ?`, online, id)
	return wrap("set online", err)
}

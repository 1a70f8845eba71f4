package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Arjunan-lab/ChattingApp/internal/ids"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

const (
	seqKey    = "chat:messages:seq"
	lastTSKey = "chat:messages:last_ts"
	usersKey  = "chat:users"
)

// appendScript assigns seq and a clamped server timestamp, writes the message
// hash and indexes it, all in one atomic step.
var appendScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[1])
local t = redis.call('TIME')
local ts = tonumber(t[1]) * 1000000 + tonumber(t[2])
local last = tonumber(redis.call('GET', KEYS[2]) or '0')
if ts < last then ts = last end
local tss = string.format('%d', ts)
redis.call('SET', KEYS[2], tss)
redis.call('HSET', KEYS[3], 'id', ARGV[1], 'from', ARGV[2], 'to', ARGV[3], 'room', ARGV[4], 'content', ARGV[5], 'created_at', tss, 'seq', seq)
redis.call('ZADD', KEYS[4], seq, ARGV[1])
return {seq, ts}
`)

// RedisStore keeps messages as hashes indexed by per-conversation sorted sets
// scored by a global sequence. Its client is also shared with the rate limiter.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() {
	s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func messageKey(id string) string {
	return fmt.Sprintf("chat:message:%s", id)
}

// directKey is the same for both directions of a conversation.
func directKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("chat:dm:%s:%s", a, b)
}

func roomKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:messages", roomID)
}

func userKey(id string) string {
	return fmt.Sprintf("chat:user:%s", id)
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	defer observe("redis", "append", time.Now())

	if err := validate(msg); err != nil {
		return nil, err
	}

	index := directKey(msg.From, msg.To)
	if msg.RoomID != "" {
		index = roomKey(msg.RoomID)
	}

	msg.ID = ids.NewMessageID()
	res, err := appendScript.Run(ctx, s.client,
		[]string{seqKey, lastTSKey, messageKey(msg.ID), index},
		msg.ID, msg.From, msg.To, msg.RoomID, msg.Content,
	).Int64Slice()
	if err != nil {
		return nil, wrap("append", err)
	}
	if len(res) != 2 {
		return nil, wrap("append", fmt.Errorf("unexpected script reply %v", res))
	}

	msg.Seq = res[0]
	msg.CreatedAt = time.UnixMicro(res[1]).UTC()
	return &msg, nil
}

func (s *RedisStore) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	return s.listIndex(ctx, directKey(a, b))
}

func (s *RedisStore) ListRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	return s.listIndex(ctx, roomKey(roomID))
}

func (s *RedisStore) listIndex(ctx context.Context, key string) ([]models.Message, error) {
	defer observe("redis", "list", time.Now())

	msgIDs, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, wrap("list", err)
	}

	messages := make([]models.Message, 0, len(msgIDs))
	if len(msgIDs) == 0 {
		return messages, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(msgIDs))
	for i, id := range msgIDs {
		cmds[i] = pipe.HGetAll(ctx, messageKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrap("list", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		messages = append(messages, messageFromHash(fields))
	}
	return messages, nil
}

func messageFromHash(f map[string]string) models.Message {
	seq, _ := strconv.ParseInt(f["seq"], 10, 64)
	ts, _ := strconv.ParseInt(f["created_at"], 10, 64)
	return models.Message{
		ID:        f["id"],
		From:      f["from"],
		To:        f["to"],
		RoomID:    f["room"],
		Content:   f["content"],
		CreatedAt: time.UnixMicro(ts).UTC(),
		Seq:       seq,
	}
}

func (s *RedisStore) CountMessages(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, seqKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, wrap("count messages", err)
}

func (s *RedisStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	u := &models.User{
		ID:        ids.NewUserID(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(u.ID),
			"id", u.ID,
			"name", u.Name,
			"email", u.Email,
			"avatar", "",
			"online", "0",
			"created_at", strconv.FormatInt(u.CreatedAt.UnixMicro(), 10),
		)
		pipe.SAdd(ctx, usersKey, u.ID)
		return nil
	})
	if err != nil {
		return nil, wrap("create user", err)
	}
	return u, nil
}

func (s *RedisStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, wrap("get user", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	u := userFromHash(fields)
	return &u, nil
}

func userFromHash(f map[string]string) models.User {
	ts, _ := strconv.ParseInt(f["created_at"], 10, 64)
	return models.User{
		ID:        f["id"],
		Name:      f["name"],
		Email:     f["email"],
		Avatar:    f["avatar"],
		Online:    f["online"] == "1",
		CreatedAt: time.UnixMicro(ts).UTC(),
	}
}

// ListUsers returns the roster sorted by name.
func (s *RedisStore) ListUsers(ctx context.Context) ([]models.User, error) {
	userIDs, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, wrap("list users", err)
	}

	users := make([]models.User, 0, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, userKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrap("list users", err)
	}

	for _, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			users = append(users, userFromHash(fields))
		}
	}
	sortUsers(users)
	return users, nil
}

func (s *RedisStore) SetUserOnline(ctx context.Context, id string, online bool) error {
	exists, err := s.client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return wrap("set online", err)
	}
	if exists == 0 {
		return nil
	}
	flag := "0"
	if online {
		flag = "1"
	}
	return wrap("set online", s.client.HSet(ctx, userKey(id), "online", flag).Err())
}

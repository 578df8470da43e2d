package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// compile-time check that *RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// RedisStore keeps sessions in redis with a TTL, so conversational state
// survives process restarts and idle sessions expire on their own. Records
// are JSON-encoded under one key per user.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing redis client. A non-positive ttl defaults
// to 24h — sessions should never be immortal.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

// Get returns the stored session, or a fresh main-menu session when the key
// is absent or expired.
func (s *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return Session{State: StateMainMenu}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: getting session for user %d: %w", userID, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// A corrupt record is not worth failing the event over; start the
		// user from the menu.
		return Session{State: StateMainMenu}, nil
	}
	return sess, nil
}

func (s *RedisStore) Put(ctx context.Context, userID int64, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshaling session for user %d: %w", userID, err)
	}
	if err := s.client.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: storing session for user %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("session: resetting session for user %d: %w", userID, err)
	}
	return nil
}

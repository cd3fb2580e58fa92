package presence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/john0isaac/fastroom/internal/config"
)

const scanCount = 100

// RedisStore keeps presence records as expiring Redis keys with a sentinel
// value. One key per (room, username, connection).
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and returns a presence store whose records
// expire after ttl unless refreshed.
func NewRedisStore(cfg config.RedisConfig, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	return s.client.Set(ctx, recordKey(s.prefix, rec), "1", s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, rec Record) error {
	return s.client.Del(ctx, recordKey(s.prefix, rec)).Err()
}

func (s *RedisStore) UserPresent(ctx context.Context, room, username string) (bool, error) {
	iter := s.client.Scan(ctx, 0, userPattern(s.prefix, room, username), scanCount).Iterator()
	if iter.Next(ctx) {
		return true, nil
	}
	return false, iter.Err()
}

func (s *RedisStore) ListUsers(ctx context.Context, room string) ([]string, error) {
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, roomPattern(s.prefix, room), scanCount).Iterator()
	for iter.Next(ctx) {
		if username, ok := usernameFromKey(iter.Val()); ok {
			seen[username] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

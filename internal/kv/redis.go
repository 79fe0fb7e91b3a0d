package kv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementWindowScript keeps the window start and the count in one hash so
// the reset-or-increment decision happens inside a single server-side step.
var incrementWindowScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'w')
if current ~= ARGV[1] then
	redis.call('HSET', KEYS[1], 'w', ARGV[1], 'c', 1)
	if tonumber(ARGV[2]) > 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 1
end
return redis.call('HINCRBY', KEYS[1], 'c', 1)
`)

// RedisStore implements [Store] on a Redis client.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore namespaces every key under prefix. An empty prefix defaults to "ag".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ag"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		data, err = s.client.Get(ctx, s.key(key)).Bytes()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisStore) IncrementWindow(ctx context.Context, key string, windowStart int64, ttl time.Duration) (int64, error) {
	count, err := incrementWindowScript.Run(
		ctx,
		s.client,
		[]string{s.key(key)},
		windowStart,
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

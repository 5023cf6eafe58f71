package kvstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists cache snapshots to Redis, the production backend
// option from spec §6's storage-backend choice. Keys are stored verbatim
// (the "/"-delimited layout in spec §6 requires no transformation), and
// prefix scans use Redis's cursor-based SCAN to avoid blocking on KEYS.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to host:port, selecting db and authenticating
// with password if non-empty.
func NewRedisStore(host string, port int, db int, password string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr(host, port),
		DB:       db,
		Password: password,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			val, err := s.client.Get(ctx, k).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return nil, err
			}
			out[k] = val
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func addr(host string, port int) string {
	if port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

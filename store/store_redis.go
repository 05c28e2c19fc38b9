package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisKeyPrefix = "warden/"

// RedisStore backs the store contract with redis. Values are stored
// uncached: this is the store of record, and the engine re-reads case lists
// immediately after writing them.
type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.Client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val string) error {
	return s.Client.Set(ctx, redisKeyPrefix+key, val, 0).Err()
}

func (s *RedisStore) SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, redisKeyPrefix+key, val, ttl).Result()
}

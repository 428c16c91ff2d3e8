package coordinator

import (
	"context"
	"fmt"
	"strings"

	"smartcage-backend/internal/cache"
)

// RedisStore keeps records as plain Redis string keys
type RedisStore struct {
	cache  *cache.Service
	prefix string
}

func NewRedisStore(c *cache.Service, prefix string) *RedisStore {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "/", ":"), ":")
	if prefix == "" {
		prefix = "smartcage"
	}
	return &RedisStore{cache: c, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, found, err := s.cache.GetRaw(ctx, s.key(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.cache.SetRaw(ctx, s.key(key), value, 0); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, s.key(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close leaves the shared client open for the live feed
func (s *RedisStore) Close() error { return nil }

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service wraps a Redis client used for the shared store and the live feed.
// A nil client turns every operation into a no-op.
type Service struct {
	client *redis.Client
}

// New connects to the Redis instance at url, retrying the initial ping
func New(url string, attempts int) (*Service, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return &Service{}, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			log.Printf("Cache: Connected to redis at %s", opts.Addr)
			return &Service{client: client}, nil
		}
		log.Printf("Cache: Redis ping attempt %d/%d failed: %v", i+1, attempts, lastErr)
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}

	_ = client.Close()
	return &Service{}, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Client() *redis.Client {
	return s.client
}

func (s *Service) Available() bool {
	return s != nil && s.client != nil
}

// GetRaw returns the stored bytes; found is false when the key does not exist
func (s *Service) GetRaw(ctx context.Context, key string) (data []byte, found bool, err error) {
	if !s.Available() {
		return nil, false, nil
	}
	data, err = s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Get decodes the JSON value at key into dest
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := s.GetRaw(ctx, key)
	if err != nil || !found {
		return found, err
	}
	return true, json.Unmarshal(data, dest)
}

// SetRaw stores bytes at key; ttl 0 means no expiry
func (s *Service) SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.SetRaw(ctx, key, data, ttl)
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// Publish sends value as JSON on a pub/sub channel
func (s *Service) Publish(ctx context.Context, channel string, value interface{}) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *Service) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *Service) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}

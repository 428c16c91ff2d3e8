package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartcage-backend/internal/cache"
)

// Record keys shared by every instance
const (
	KeyConfig       = "config"
	KeyAdminSession = "admin_session"
)

// ErrNotFound is returned by Store.Get when the record does not exist
var ErrNotFound = errors.New("record not found")

// Store is a durable key-value store with whole-record replace semantics
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// StoreOptions selects and configures a Store backend
type StoreOptions struct {
	Kind          string // file, sqlite, redis, etcd
	Dir           string
	SQLitePath    string
	Cache         *cache.Service
	EtcdEndpoints []string
	KeyPrefix     string
	DialTimeout   time.Duration
}

// OpenStore creates the configured backend
func OpenStore(opts StoreOptions) (Store, error) {
	switch opts.Kind {
	case "", "file":
		return NewFileStore(opts.Dir)
	case "sqlite":
		return NewSQLiteStore(opts.SQLitePath)
	case "redis":
		if !opts.Cache.Available() {
			return nil, fmt.Errorf("redis store requires a connected redis client")
		}
		return NewRedisStore(opts.Cache, opts.KeyPrefix), nil
	case "etcd":
		return NewEtcdStore(opts.EtcdEndpoints, opts.KeyPrefix, opts.DialTimeout)
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}

func getJSON(ctx context.Context, s Store, timeout time.Duration, key string, dest interface{}) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s record: %w", key, err)
	}
	return nil
}

func putJSON(ctx context.Context, s Store, timeout time.Duration, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", key, err)
	}

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	return s.Put(ctx, key, data)
}

func deleteKey(ctx context.Context, s Store, timeout time.Duration, key string) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	return s.Delete(ctx, key)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

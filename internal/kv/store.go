// Package kv provides the flat key-value store that every persisted blob
// (items, settings, favorite recipes, reminder registry, barcode cache) lives in.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("kv: key not found")

// Store is a flat key-value store of opaque blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	BoltPath string
	RedisURL string
	// Prefix namespaces keys in shared backends (Redis).
	Prefix string
}

// Open creates the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendBolt:
		return OpenBolt(opts.BoltPath, 1*time.Second)
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisURL, opts.Prefix)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (must be bolt, redis or memory)", opts.Backend)
	}
}

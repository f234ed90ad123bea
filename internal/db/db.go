// Package db defines the key-value store behind the shared response cache.
package db

import (
	"context"
	"time"
)

// Store is a shared cache store: entries always expire.
type Store interface {
	Pinger
	KVStore
	Close()
}

// Pinger is used by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore reads and writes serialized retrieve results.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

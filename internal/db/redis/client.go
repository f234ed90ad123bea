// Package redis stores shared response-cache entries in Redis or Valkey via rueidis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/rhokp/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	defaultClientName  = "rhokp"
	defaultDialTimeout = 5 * time.Second
)

// Config holds connection parameters. Only Addrs is required.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// DialTimeout bounds connection setup; 0 means 5s.
	DialTimeout time.Duration
	// ClientName is reported via CLIENT SETNAME; empty means "rhokp".
	ClientName string
}

// Store is a db.Store over a rueidis client.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the first reachable address.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("cache store: at least one address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      cfg.Addrs,
		Username:         cfg.Username,
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		ClientName:       cfg.ClientName,
		Dialer:           net.Dialer{Timeout: cfg.DialTimeout},
		ConnWriteTimeout: cfg.DialTimeout,
		// Entries are small and TTL-bound; server-assisted client caching would
		// only duplicate the in-process cache.
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache store %v: %w", cfg.Addrs, err)
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

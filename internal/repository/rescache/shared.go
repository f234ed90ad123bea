package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/db"
	"github.com/kailas-cloud/rhokp/internal/domain"
)

// store is the consumer interface for the shared cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Shared keeps results in Redis/Valkey so several client processes can reuse
// them. Expiry is enforced by the store (SET .. EX).
type Shared struct {
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

// NewShared creates a store-backed cache.
func NewShared(s store, ttl time.Duration, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shared{store: s, ttl: ttl, logger: logger}
}

// Get returns a cached result. A missing key is a miss; a corrupt entry is
// logged and treated as a miss; store failures are returned.
func (s *Shared) Get(ctx context.Context, key string) (domain.RetrieveResult, bool, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.RetrieveResult{}, false, nil
		}
		return domain.RetrieveResult{}, false, fmt.Errorf("cache get: %w", err)
	}
	if len(data) == 0 {
		return domain.RetrieveResult{}, false, nil
	}

	var dto resultDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		s.logger.Warn("Failed to parse cached result", zap.String("key", key), zap.Error(err))
		return domain.RetrieveResult{}, false, nil
	}
	return fromDTO(dto), true, nil
}

// Set stores res with the configured TTL.
func (s *Shared) Set(ctx context.Context, key string, res domain.RetrieveResult) error {
	data, err := json.Marshal(toDTO(res))
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, key, data, s.ttl); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

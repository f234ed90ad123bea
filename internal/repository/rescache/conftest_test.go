package rescache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/rhokp/internal/db"
	"github.com/kailas-cloud/rhokp/internal/domain"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sampleResult() domain.RetrieveResult {
	return domain.RetrieveResult{
		Query:    "install OpenShift",
		NumFound: 42,
		Docs: []domain.Document{
			{
				ID: "doc-1", Title: "Installing", Snippet: "Run the installer", URL: "/documentation/install",
				Product: "OpenShift Container Platform", Version: "4.16", Kind: "documentation", Score: 9.1,
				LastModified: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), Headings: []string{"Prerequisites"},
			},
			{ID: "doc-2", Title: "RHSA-2025:1", Kind: "errata", Score: 7.3, Severity: "Important"},
		},
		Facets:  domain.FacetCounts{domain.FacetProduct: {"OpenShift Container Platform": 40}},
		Context: "[1] Installing",
		Elapsed: 120 * time.Millisecond,
	}
}

package health

import (
	"context"

	"github.com/kailas-cloud/rhokp/internal/breaker"
	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Prober reports backend index health.
type Prober interface {
	Probe(ctx context.Context) (domain.ProbeResult, error)
}

// Searcher is the fallback for backends without a probe.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error)
}

// CachePinger checks the shared cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// BreakerReader exposes the breaker position.
type BreakerReader interface {
	Snapshot() breaker.Snapshot
}

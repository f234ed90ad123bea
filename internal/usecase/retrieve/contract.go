package retrieve

import (
	"context"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Backend runs a search against the portal index.
type Backend interface {
	Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error)
}

// Prober is implemented by backends that can report index health.
type Prober interface {
	Probe(ctx context.Context) (domain.ProbeResult, error)
}

// Cache keeps finished results. Implementations return copies the caller may mutate.
type Cache interface {
	Get(ctx context.Context, key string) (domain.RetrieveResult, bool, error)
	Set(ctx context.Context, key string, res domain.RetrieveResult) error
}

// named is implemented by backends that report a metrics label.
type named interface {
	Name() string
}

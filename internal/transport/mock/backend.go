// Package mock provides a deterministic in-memory search backend for tests and demos.
package mock

import (
	"context"
	"sync"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Name identifies this backend in metrics and logs.
const Name = "mock"

// Call is one request seen by the backend.
type Call struct {
	Query   string
	Rows    int
	Filters domain.Filters
}

// Backend returns canned documents. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	docs     []domain.Document
	byQuery  map[string][]domain.Document
	numFound int
	facets   domain.FacetCounts
	errs     []error
	calls    []Call
	probe    *domain.ProbeResult
}

// Option configures a Backend.
type Option func(*Backend)

// WithNumFound overrides the reported total (defaults to the number of docs).
func WithNumFound(n int) Option {
	return func(b *Backend) { b.numFound = n }
}

// WithFacets sets the facet counts returned with every response.
func WithFacets(f domain.FacetCounts) Option {
	return func(b *Backend) { b.facets = f.Clone() }
}

// WithQueryDocs returns docs for an exact (sanitized) query instead of the defaults.
func WithQueryDocs(q string, docs []domain.Document) Option {
	return func(b *Backend) {
		if b.byQuery == nil {
			b.byQuery = make(map[string][]domain.Document)
		}
		b.byQuery[q] = cloneDocs(docs)
	}
}

// WithErrors scripts failures returned in order before searches succeed.
func WithErrors(errs ...error) Option {
	return func(b *Backend) { b.errs = append(b.errs, errs...) }
}

// WithProbe sets the probe result. Without it Probe derives one from the docs.
func WithProbe(p domain.ProbeResult) Option {
	return func(b *Backend) { b.probe = &p }
}

// New creates a Backend serving docs.
func New(docs []domain.Document, opts ...Option) *Backend {
	b := &Backend{docs: cloneDocs(docs), numFound: -1}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name implements the named-backend hook used for metrics labels.
func (b *Backend) Name() string { return Name }

// Search records the call, then returns the next scripted error or up to Rows docs.
func (b *Backend) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, Call{Query: req.Query, Rows: req.Rows, Filters: req.Filters})

	if err := ctx.Err(); err != nil {
		return domain.SearchResponse{}, domain.NewError(domain.KindTimeout, "search", err)
	}
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return domain.SearchResponse{}, err
	}

	docs, ok := b.byQuery[req.Query]
	if !ok {
		docs = b.docs
	}
	numFound := b.numFound
	if numFound < 0 {
		numFound = len(docs)
	}
	if req.Rows >= 0 && len(docs) > req.Rows {
		docs = docs[:req.Rows]
	}
	return domain.SearchResponse{
		Docs:     cloneDocs(docs),
		NumFound: numFound,
		Facets:   b.facets.Clone(),
	}, nil
}

// Probe reports the configured probe result or a summary of the default docs.
func (b *Backend) Probe(ctx context.Context) (domain.ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProbeResult{}, domain.NewError(domain.KindTimeout, "probe", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.probe != nil {
		p := *b.probe
		p.Products = append([]string(nil), p.Products...)
		return p, nil
	}
	if b.facets != nil {
		return domain.ProbeResult{NumIndexed: len(b.docs), Products: b.facets.Values(domain.FacetProduct)}, nil
	}
	var products []string
	seen := make(map[string]bool)
	for _, d := range b.docs {
		if d.Product != "" && !seen[d.Product] {
			seen[d.Product] = true
			products = append(products, d.Product)
		}
	}
	return domain.ProbeResult{NumIndexed: len(b.docs), Products: products}, nil
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns the number of Search calls so far.
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }

func cloneDocs(docs []domain.Document) []domain.Document {
	if docs == nil {
		return nil
	}
	out := domain.RetrieveResult{Docs: docs}.Clone().Docs
	return out
}

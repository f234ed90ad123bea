package rhokp

import "github.com/kailas-cloud/rhokp/internal/transport/mock"

// MockBackend is a scripted in-memory SearchBackend for tests of code that
// depends on this package. Safe for concurrent use.
type MockBackend = mock.Backend

// MockOption configures a MockBackend.
type MockOption = mock.Option

// MockCall records one search received by a MockBackend.
type MockCall = mock.Call

// NewMockBackend returns a backend that answers every query with docs.
func NewMockBackend(docs []Document, opts ...MockOption) *MockBackend {
	return mock.New(docs, opts...)
}

// MockNumFound overrides the reported total (default: len(docs)).
func MockNumFound(n int) MockOption { return mock.WithNumFound(n) }

// MockFacets sets the facet counts returned with every answer.
func MockFacets(f FacetCounts) MockOption { return mock.WithFacets(f) }

// MockQueryDocs answers the sanitized query q with docs instead of the defaults.
func MockQueryDocs(q string, docs []Document) MockOption { return mock.WithQueryDocs(q, docs) }

// MockErrors makes the next calls fail with errs, in order.
func MockErrors(errs ...error) MockOption { return mock.WithErrors(errs...) }

// MockProbe sets the health probe answer.
func MockProbe(p ProbeResult) MockOption { return mock.WithProbe(p) }

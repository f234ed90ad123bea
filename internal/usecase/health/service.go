// Package health reports whether the portal backend and the cache store are usable.
package health

import (
	"context"

	"github.com/kailas-cloud/rhokp/internal/breaker"
	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the backend answers but something around it does not.
	Degraded Status = "degraded"
	// Unhealthy indicates the backend cannot serve searches.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in Report.Checks.
const (
	CheckBackend = "backend"
	CheckCache   = "cache"
)

// Report aggregates health check results.
type Report struct {
	Status            Status
	Checks            map[string]CheckResult
	NumIndexed        int
	ProductsAvailable int
	Breaker           breaker.State
	BreakerFailures   int
	BaseURL           string
	Handler           string
	// Error is the backend failure, when there is one.
	Error error
}

// Service coordinates health checks. The probe goes straight to the backend:
// no cache, no breaker.
type Service struct {
	backend Prober
	cache   CachePinger
	breaker BreakerReader
	baseURL string
	handler string
}

// New creates a Service. cache and br can be nil.
func New(backend Prober, cache CachePinger, br BreakerReader, cfg domain.Config) *Service {
	return &Service{
		backend: backend,
		cache:   cache,
		breaker: br,
		baseURL: cfg.BaseURL,
		handler: cfg.Handler,
	}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{
		Checks:  make(map[string]CheckResult),
		BaseURL: s.baseURL,
		Handler: s.handler,
	}

	probe, err := s.backend.Probe(ctx)
	if err != nil {
		r.Checks[CheckBackend] = CheckError
		r.Error = err
	} else {
		r.Checks[CheckBackend] = CheckOK
		r.NumIndexed = probe.NumIndexed
		r.ProductsAvailable = len(probe.Products)
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			r.Checks[CheckCache] = CheckError
		} else {
			r.Checks[CheckCache] = CheckOK
		}
	}

	if s.breaker != nil {
		snap := s.breaker.Snapshot()
		r.Breaker = snap.State
		r.BreakerFailures = snap.Failures
	}

	switch {
	case r.Checks[CheckBackend] == CheckError:
		r.Status = Unhealthy
	case r.Checks[CheckCache] == CheckError, r.Breaker != breaker.Closed:
		r.Status = Degraded
	default:
		r.Status = Healthy
	}
	return r
}

// SearchProber probes a backend that has no native probe with a one-row search.
type SearchProber struct {
	Backend Searcher
}

// Probe implements Prober.
func (p SearchProber) Probe(ctx context.Context) (domain.ProbeResult, error) {
	resp, err := p.Backend.Search(ctx, domain.SearchRequest{Query: "test", Rows: 1})
	if err != nil {
		return domain.ProbeResult{}, err
	}
	return domain.ProbeResult{
		NumIndexed: resp.NumFound,
		Products:   resp.Facets.Values(domain.FacetProduct),
	}, nil
}

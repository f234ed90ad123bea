package rhokp

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/usecase/retrieve"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg Config

	backend    SearchBackend
	localIndex string

	cache         Cache
	redisAddrs    []string
	redisPassword string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithConfig replaces the whole configuration. Options applied after it
// still adjust individual fields.
func WithConfig(cfg Config) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg = cfg
	})
}

// WithBaseURL sets the portal URL, e.g. "https://okp.example.com:8443".
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.BaseURL = url
	})
}

// WithAuthToken sends the token as a bearer Authorization header.
func WithAuthToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.AuthToken = token
	})
}

// WithBackend replaces the HTTP backend. The caller keeps ownership:
// Close does not close it.
func WithBackend(b SearchBackend) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = b
	})
}

// WithLocalIndex serves searches from a JSONL portal export loaded into an
// embedded in-memory index instead of the portal.
func WithLocalIndex(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.localIndex = path
	})
}

// WithCache installs a custom response cache. Config.CacheTTL still has to
// be positive for the cache to be used.
func WithCache(cache Cache) Option {
	return optionFunc(func(c *clientConfig) {
		c.cache = cache
	})
}

// WithRedisCache keeps cached responses in Redis or Valkey so several
// processes share them. Entries expire after Config.CacheTTL.
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (retrieve outcomes, backend
// latency, retries, cache and breaker state) on the given registerer.
// Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// RetrieveOption tunes a single Retrieve call.
type RetrieveOption interface {
	applyRetrieve(*retrieveConfig)
}

type retrieveOptionFunc func(*retrieveConfig)

func (f retrieveOptionFunc) applyRetrieve(r *retrieveConfig) { f(r) }

type retrieveConfig struct {
	req retrieve.Request
	err error
}

func buildRequest(query string, opts []RetrieveOption) (retrieve.Request, error) {
	rc := retrieveConfig{req: retrieve.Request{Query: query}}
	for _, o := range opts {
		o.applyRetrieve(&rc)
	}
	return rc.req, rc.err
}

// WithRows sets how many documents to fetch (1..100). Default: Config.Rows.
func WithRows(n int) RetrieveOption {
	return retrieveOptionFunc(func(r *retrieveConfig) {
		r.req.Rows = n
		if n < domain.MinRows && r.err == nil {
			// 0 would otherwise mean "default"
			r.err = domain.Validation("rows",
				fmt.Errorf("rows must be in [%d, %d], got %d", domain.MinRows, domain.MaxRows, n))
		}
	})
}

// Filter restricts the search by key: product, version or kind
// (document_kind and documentKind are accepted too). An unknown key fails
// the call with a Validation error.
func Filter(key, value string) RetrieveOption {
	return retrieveOptionFunc(func(r *retrieveConfig) {
		if err := r.req.Filters.Set(key, value); err != nil && r.err == nil {
			r.err = err
		}
	})
}

// WithFilters applies every entry of m as a Filter.
func WithFilters(m map[string]string) RetrieveOption {
	return retrieveOptionFunc(func(r *retrieveConfig) {
		f, err := domain.ParseFilters(m)
		if err != nil {
			if r.err == nil {
				r.err = err
			}
			return
		}
		if f.Product != "" {
			r.req.Filters.Product = f.Product
		}
		if f.Version != "" {
			r.req.Filters.Version = f.Version
		}
		if f.Kind != "" {
			r.req.Filters.Kind = f.Kind
		}
	})
}

// Product restricts the search to a product, e.g. "Red Hat Enterprise Linux".
func Product(name string) RetrieveOption { return Filter(domain.FilterProduct, name) }

// Version restricts the search to a documentation version, e.g. "4.16".
func Version(v string) RetrieveOption { return Filter(domain.FilterVersion, v) }

// DocumentKind restricts the search to a document kind, e.g. "Solution" or "Errata".
func DocumentKind(kind string) RetrieveOption { return Filter(domain.FilterKind, kind) }

// WithMaxTokens caps the context block; 0 or negative means unlimited. Default: Config.MaxTokens.
func WithMaxTokens(n int) RetrieveOption {
	return retrieveOptionFunc(func(r *retrieveConfig) {
		r.req.MaxTokens = n
		if n == 0 {
			r.req.MaxTokens = -1
		}
	})
}

// WithOrder sets the context entry order. Default: OrderRelevance.
func WithOrder(o Order) RetrieveOption {
	return retrieveOptionFunc(func(r *retrieveConfig) {
		r.req.Order = o
	})
}

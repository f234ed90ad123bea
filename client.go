package rhokp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/breaker"
	dbRedis "github.com/kailas-cloud/rhokp/internal/db/redis"
	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/metrics"
	"github.com/kailas-cloud/rhokp/internal/repository/rescache"
	localbackend "github.com/kailas-cloud/rhokp/internal/transport/bleve"
	"github.com/kailas-cloud/rhokp/internal/transport/solr"
	healthuc "github.com/kailas-cloud/rhokp/internal/usecase/health"
	"github.com/kailas-cloud/rhokp/internal/usecase/retrieve"
	"github.com/kailas-cloud/rhokp/internal/version"
)

// Внутренние интерфейсы для подмены в тестах.
type retrieveUseCase interface {
	Retrieve(ctx context.Context, req retrieve.Request) (domain.RetrieveResult, error)
	Close()
	Closed() bool
}

// Client is the rhokp SDK entry point. It owns one backend (and with it one
// pooled transport), one circuit breaker and one response cache. It is safe
// for concurrent use.
type Client struct {
	cfg       Config
	svc       retrieveUseCase
	healthSvc healthUseCase
	cache     Cache
	logger    *zap.Logger

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// AsyncResult is delivered by RetrieveAsync.
type AsyncResult struct {
	Result *RetrieveResult
	Err    error
}

// New creates a Client. Without options it targets DefaultConfig().BaseURL
// with an in-memory cache disabled (CacheTTL 0).
func New(opts ...Option) (*Client, error) {
	cc := &clientConfig{cfg: DefaultConfig()}
	for _, o := range opts {
		o.apply(cc)
	}
	cfg := cc.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cc.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var m *metrics.Retrieval
	if cc.metricsReg != nil {
		var err error
		m, err = metrics.NewRetrieval(cc.metricsReg)
		if err != nil {
			return nil, fmt.Errorf("rhokp: %w", err)
		}
	}

	c := &Client{cfg: cfg, logger: logger}

	backend, err := c.newBackend(cc, logger)
	if err != nil {
		return nil, err
	}
	cache, pinger, err := c.newCache(cc, logger)
	if err != nil {
		_ = c.closeResources()
		return nil, err
	}

	name := "custom"
	if n, ok := backend.(interface{ Name() string }); ok {
		name = n.Name()
	}
	br := breaker.New(name, cfg.BreakerLimit, cfg.BreakerCool, logger)
	if m != nil {
		m.SetBreakerState(name, int(breaker.Closed))
		br.WithStateHook(func(from, to breaker.State) {
			m.SetBreakerState(name, int(to))
			m.IncBreakerTransition(name, from.String(), to.String())
		})
	}

	var prober healthuc.Prober = healthuc.SearchProber{Backend: backend}
	if p, ok := backend.(retrieve.Prober); ok {
		prober = p
	}

	c.cache = cache
	c.svc = retrieve.New(cfg, backend, cache, br, m, logger)
	c.healthSvc = healthuc.New(prober, pinger, br, cfg)

	logger.Debug("rhokp client created",
		zap.String("backend", name),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("cache", cache != nil),
		zap.Int("breaker_threshold", cfg.BreakerLimit),
	)
	return c, nil
}

func (c *Client) newBackend(cc *clientConfig, logger *zap.Logger) (SearchBackend, error) {
	switch {
	case cc.backend != nil:
		return cc.backend, nil
	case cc.localIndex != "":
		b, err := localbackend.Open(cc.localIndex, logger)
		if err != nil {
			return nil, domain.Validation("local_index", err)
		}
		c.closers = append(c.closers, b.Close)
		return b, nil
	default:
		b, err := solr.New(cc.cfg, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, b.Close)
		return b, nil
	}
}

func (c *Client) newCache(cc *clientConfig, logger *zap.Logger) (Cache, healthuc.CachePinger, error) {
	cfg := cc.cfg
	switch {
	case cfg.CacheTTL <= 0:
		return nil, nil, nil
	case cc.cache != nil:
		p, _ := cc.cache.(healthuc.CachePinger)
		return cc.cache, p, nil
	case len(cc.redisAddrs) > 0:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:       cc.redisAddrs,
			Password:    cc.redisPassword,
			DialTimeout: cfg.ConnectTimeout,
			ClientName:  version.UserAgent(),
		})
		if err != nil {
			return nil, nil, domain.Validation("cache", err)
		}
		c.closers = append(c.closers, func() error {
			store.Close()
			return nil
		})
		return rescache.NewShared(store, cfg.CacheTTL, logger), store, nil
	default:
		return rescache.NewMemory(cfg.CacheTTL, cfg.CacheMaxEntries), nil, nil
	}
}

// Retrieve searches the portal for query and builds the context block.
// Every error is an *Error.
func (c *Client) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) (*RetrieveResult, error) {
	req, err := buildRequest(query, opts)
	if err != nil {
		return nil, err
	}
	res, err := c.svc.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RetrieveAsync runs Retrieve in its own goroutine. The channel delivers
// exactly one AsyncResult and is then closed.
func (c *Client) RetrieveAsync(ctx context.Context, query string, opts ...RetrieveOption) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		res, err := c.Retrieve(ctx, query, opts...)
		ch <- AsyncResult{Result: res, Err: err}
	}()
	return ch
}

// ClearCache drops every cached response held by this client. A shared
// Redis/Valkey cache is not flushed: other processes read the same keys, and
// its entries expire on their own. Custom caches are cleared when they
// implement Clear().
func (c *Client) ClearCache() {
	if cl, ok := c.cache.(interface{ Clear() }); ok {
		cl.Clear()
		c.logger.Debug("rhokp cache cleared")
	}
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// Close releases the pooled transport, the local index and the cache store
// connection. Later calls fail with ErrClientClosed. Safe to call twice.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.svc.Close()
		c.closeErr = c.closeResources()
		c.logger.Debug("rhokp client closed")
	})
	return c.closeErr
}

func (c *Client) closeResources() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

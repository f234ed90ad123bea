// Package retrieve orchestrates a retrieve call: validation, sanitizing,
// cache lookup, the breaker-gated retrying backend call and context assembly.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/breaker"
	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/domain/contextblock"
	"github.com/kailas-cloud/rhokp/internal/domain/query"
	"github.com/kailas-cloud/rhokp/internal/logger"
	"github.com/kailas-cloud/rhokp/internal/metrics"
	"github.com/kailas-cloud/rhokp/internal/retry"
)

// Request is one retrieve call.
type Request struct {
	Query string
	// Rows overrides the configured row count when non-zero.
	Rows    int
	Filters domain.Filters
	// MaxTokens overrides the configured context budget when non-zero; negative means unlimited.
	MaxTokens int
	Order     contextblock.Order
}

// Service runs retrieve calls for one client.
type Service struct {
	cfg         domain.Config
	backend     Backend
	backendName string
	cache       Cache
	breaker     *breaker.Breaker
	policy      retry.Policy
	metrics     *metrics.Retrieval
	logger      *zap.Logger
	closed      atomic.Bool
}

// New creates a Service. cache, br and m may be nil: no cache, no breaker, no metrics.
func New(
	cfg domain.Config, backend Backend, cache Cache,
	br *breaker.Breaker, m *metrics.Retrieval, logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if br == nil {
		br = breaker.New("backend", 0, 0, logger)
	}
	name := "custom"
	if n, ok := backend.(named); ok {
		name = n.Name()
	}
	return &Service{
		cfg:         cfg,
		backend:     backend,
		backendName: name,
		cache:       cache,
		breaker:     br,
		policy: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BackoffBase,
			MaxDelay:   cfg.BackoffMax,
		},
		metrics: m,
		logger:  logger,
	}
}

// Breaker exposes the breaker for health reporting.
func (s *Service) Breaker() *breaker.Breaker { return s.breaker }

// Close marks the service closed. Later calls fail with ErrClientClosed. Idempotent.
func (s *Service) Close() {
	s.closed.Store(true)
}

// Closed reports whether Close was called.
func (s *Service) Closed() bool { return s.closed.Load() }

// Retrieve runs a retrieve call. Every error is a *domain.Error.
func (s *Service) Retrieve(ctx context.Context, req Request) (domain.RetrieveResult, error) {
	start := time.Now()

	ctx, log := logger.ForRequest(ctx, s.logger)

	res, cached, err := s.retrieve(ctx, log, req, start)
	elapsed := time.Since(start)
	s.metrics.ObserveRetrieve(kindLabel(err), cached, elapsed)

	if err != nil {
		level := zap.WarnLevel
		if domain.IsKind(err, domain.KindValidation) {
			level = zap.DebugLevel
		}
		log.Log(level, "Retrieve failed",
			zap.String("kind", domain.KindOf(err).String()),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return domain.RetrieveResult{}, err
	}

	log.Debug("Retrieve completed",
		zap.Bool("cached", cached),
		zap.Int("docs", len(res.Docs)),
		zap.Int("num_found", res.NumFound),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

func (s *Service) retrieve(
	ctx context.Context, log *zap.Logger, req Request, start time.Time,
) (domain.RetrieveResult, bool, error) {
	if s.closed.Load() {
		return domain.RetrieveResult{}, false, domain.Validation("retrieve", domain.ErrClientClosed)
	}
	sreq, opts, err := s.prepare(req)
	if err != nil {
		return domain.RetrieveResult{}, false, err
	}

	key := sreq.CacheKey()
	if s.cache != nil {
		res, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			// cache outage is not a backend fault: fall through, breaker untouched
			s.metrics.IncCache("error")
			log.Warn("Cache lookup failed, querying backend", zap.Error(err))
		case ok:
			s.metrics.IncCache("hit")
			res.Context = contextblock.Build(res.Docs, opts)
			res.Elapsed = time.Since(start)
			return res, true, nil
		default:
			s.metrics.IncCache("miss")
		}
	}

	resp, err := s.search(ctx, log, sreq)
	if err != nil {
		return domain.RetrieveResult{}, false, err
	}

	res := domain.RetrieveResult{
		Query:    sreq.Query,
		NumFound: resp.NumFound,
		Docs:     resp.Docs,
		Facets:   resp.Facets,
		Context:  contextblock.Build(resp.Docs, opts),
		Elapsed:  time.Since(start),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.metrics.IncCache("store_error")
			log.Warn("Cache store failed", zap.Error(err))
		}
	}
	return res.Clone(), false, nil
}

// prepare validates the request and builds the backend request and context options.
func (s *Service) prepare(req Request) (domain.SearchRequest, contextblock.Options, error) {
	rows := req.Rows
	if rows == 0 {
		rows = s.cfg.Rows
	}
	if rows < domain.MinRows || rows > domain.MaxRows {
		return domain.SearchRequest{}, contextblock.Options{}, domain.Validation("rows",
			fmt.Errorf("rows must be in [%d, %d], got %d", domain.MinRows, domain.MaxRows, rows))
	}

	order, ok := contextblock.ParseOrder(string(req.Order))
	if !ok {
		return domain.SearchRequest{}, contextblock.Options{}, domain.Validation("order",
			fmt.Errorf("unknown order %q (supported: relevance, recency)", req.Order))
	}
	maxTokens := req.MaxTokens
	switch {
	case maxTokens == 0:
		maxTokens = s.cfg.MaxTokens
	case maxTokens < 0:
		maxTokens = 0
	}

	q, err := query.Check(req.Query, s.cfg.MaxQueryLength)
	if err != nil {
		return domain.SearchRequest{}, contextblock.Options{}, err
	}
	q = query.Normalize(q)
	if s.cfg.ExpandSynonyms {
		q = query.Expand(q)
	}

	return domain.SearchRequest{Query: query.Escape(q), Rows: rows, Filters: req.Filters},
		contextblock.Options{MaxTokens: maxTokens, Order: order}, nil
}

// search runs the backend call under the retry policy; every attempt is gated
// by the breaker, so a breaker that opens mid-retry stops the loop.
func (s *Service) search(ctx context.Context, log *zap.Logger, req domain.SearchRequest) (domain.SearchResponse, error) {
	policy := s.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		kind := domain.KindOf(err).String()
		s.metrics.IncRetry(kind)
		log.Info("Retrying backend search",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}

	var resp domain.SearchResponse
	err := policy.Do(ctx, func(ctx context.Context) error {
		done, err := s.breaker.Acquire()
		if err != nil {
			return err
		}
		start := time.Now()
		r, err := s.backend.Search(ctx, req)
		err = classify("search", err)
		done(breaker.OutcomeOf(err))
		s.metrics.ObserveBackend(s.backendName, statusLabel(err), time.Since(start))
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// classify tags errors from backends that do not use the taxonomy themselves.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, op, err)
	default:
		return domain.NewError(domain.KindResponse, op, err)
	}
}

func kindLabel(err error) string {
	if err == nil {
		return ""
	}
	return domain.KindOf(err).String()
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err).String()
}
